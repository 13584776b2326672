// Package resp writes JSON responses for the HTTP API.
//
// Successful responses carry the payload as-is:
//
//	resp.Success(w, map[string]any{"jobId": id, "status": "queued"})
//
// Failures share one envelope:
//
//	{
//	  "code": -402,               // business code, see package ecode
//	  "error": "Quota exceeded",  // short title
//	  "message": "...",           // human-readable detail
//	  "errors": {...}             // optional validation details
//	}
//
//	resp.Fail(w, resp.NotFound("job not found"))
//	resp.Fail(w, resp.PaymentRequired("Quota exceeded", "You have reached your daily limit."))
package resp
