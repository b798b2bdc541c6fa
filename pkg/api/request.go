package api

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"gitlab.connectwisedev.com/backoffice-service/models"
)

const dateLayout = "2006-01-02"

// Identity reads the caller from the authorizer context. With trustHeaders set,
// which only local runs do, a request without an authorizer may name its
// caller through X-User-Id and X-User-Role instead.
func Identity(req Request, trustHeaders bool) models.Identity {
	var id models.Identity
	if auth := req.RequestContext.Authorizer; auth != nil {
		id.UserID = stringValue(auth, "userId", "sub", "principalId")
		id.Role = models.Role(strings.ToLower(stringValue(auth, "role")))
		if claims, ok := auth["claims"].(map[string]any); ok && id.UserID == "" {
			id.UserID = stringValue(claims, "sub")
			id.Role = models.Role(strings.ToLower(stringValue(claims, "custom:role")))
		}
	}
	if id.UserID == "" && trustHeaders {
		id.UserID = header(req, "X-User-Id")
		id.Role = models.Role(strings.ToLower(header(req, "X-User-Role")))
	}
	if id.Role == "" {
		id.Role = models.RoleCustomer
	}
	return id
}

func stringValue(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func header(req Request, name string) string {
	if v, ok := req.Headers[name]; ok {
		return v
	}
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Decode unmarshals the request body into v.
func Decode(req Request, v any) error {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return models.Wrap(models.KindValidation, "invalid request body", err)
		}
		body = decoded
	}
	if len(body) == 0 {
		return models.NewError(models.KindValidation, "request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return models.Wrap(models.KindValidation, "invalid request body", err)
	}
	return nil
}

func PathParam(req Request, name string) (string, error) {
	v := strings.TrimSpace(req.PathParameters[name])
	if v == "" {
		return "", models.NewError(models.KindValidation, "missing path parameter %s", name)
	}
	return v, nil
}

// ParseTime accepts RFC 3339 timestamps or YYYY-MM-DD dates. A bare date used
// as an end bound covers the whole day.
func ParseTime(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, models.NewError(models.KindValidation, "invalid date %q, want YYYY-MM-DD or RFC 3339", s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

// DateRange reads the start and end query parameters. A missing start defaults
// to 30 days before end; a missing end defaults to now.
func DateRange(req Request, now time.Time) (time.Time, time.Time, error) {
	end := now
	if s := req.QueryStringParameters["end"]; s != "" {
		t, err := ParseTime(s, true)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	start := end.AddDate(0, 0, -30)
	if s := req.QueryStringParameters["start"]; s != "" {
		t, err := ParseTime(s, false)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, models.NewError(models.KindValidation, "start is after end")
	}
	return start, end, nil
}
