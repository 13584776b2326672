// Package ecode defines the business error codes carried in API error bodies
// and their mapping to HTTP statuses.
//
// Codes follow the numbering scheme:
//   - 0: Success (OK)
//   - -100 to -199: Authentication errors
//   - -400 to -499: Request, resource and admission errors
//   - -500+: Server errors
//
// Usage with the response package:
//
//	resp.Fail(w, &resp.Exception{
//	    Status:  ecode.ToHTTPStatus(ecode.QuotaExceeded),
//	    Code:    ecode.QuotaExceeded,
//	    Message: ecode.Text(ecode.QuotaExceeded),
//	})
package ecode
