package jwt

// Payload keys carried by access tokens.
const (
	PayloadUserID = "user_id"
	PayloadRole   = "role"
	PayloadName   = "name"
)

// getPayload extracts payload from token claims
func getPayload(claims map[string]any) (map[string]any, bool) {
	if payload, ok := claims["payload"].(map[string]any); ok {
		return payload, true
	}
	return nil, false
}

// getString safely extracts string value from payload
func getString(payload map[string]any, key string) string {
	if val, ok := payload[key].(string); ok {
		return val
	}
	return ""
}

// GetUserIDFromToken gets the user ID from the token
func GetUserIDFromToken(claims map[string]any) string {
	if payload, ok := getPayload(claims); ok {
		return getString(payload, PayloadUserID)
	}
	return ""
}

// GetRoleFromToken gets the caller role from the token
func GetRoleFromToken(claims map[string]any) string {
	if payload, ok := getPayload(claims); ok {
		return getString(payload, PayloadRole)
	}
	return ""
}

// GetNameFromToken gets the display name from the token
func GetNameFromToken(claims map[string]any) string {
	if payload, ok := getPayload(claims); ok {
		return getString(payload, PayloadName)
	}
	return ""
}

// CallerPayload builds the payload of an access token.
func CallerPayload(userID, role, name string) map[string]any {
	payload := map[string]any{
		PayloadUserID: userID,
		PayloadRole:   role,
	}
	if name != "" {
		payload[PayloadName] = name
	}
	return payload
}
