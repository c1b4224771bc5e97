package session

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	errs "github.com/cristhianbenitez/ai-image-generator/client/internal/errors"
	"github.com/cristhianbenitez/ai-image-generator/client/internal/types"
)

// ParseCallback decodes the OAuth callback payload. data is either the raw
// JSON object {user, token} or the query string / URL carrying it in the
// "data" parameter.
func ParseCallback(data string) (types.LoginPayload, error) {
	raw := strings.TrimSpace(data)
	if raw == "" {
		return types.LoginPayload{}, errs.NewValidationError("data", "empty callback payload")
	}
	if !strings.HasPrefix(raw, "{") {
		q := raw
		if u, err := url.Parse(raw); err == nil && u.RawQuery != "" {
			q = u.RawQuery
		}
		values, err := url.ParseQuery(q)
		if err != nil {
			return types.LoginPayload{}, errs.NewValidationError("data", err.Error())
		}
		raw = values.Get("data")
		if raw == "" {
			return types.LoginPayload{}, errs.NewValidationError("data", "missing data parameter")
		}
	}

	var p types.LoginPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return types.LoginPayload{}, errs.NewValidationError("data", fmt.Sprintf("not a login payload: %v", err))
	}
	if err := types.ValidateUserID(p.User.ID); err != nil {
		return types.LoginPayload{}, err
	}
	return p, nil
}
