package apierrors

import (
	"encoding/json"
	"strconv"
	"strings"
)

// contactLimitPrefix marks the one structured error code the backend
// emits, carrying positional parameters: CONTACT_LIMIT_REACHED::max::plan.
const contactLimitPrefix = "CONTACT_LIMIT_REACHED::"

// nonFieldKey is the map key the backend uses for errors not tied to a
// single form input.
const nonFieldKey = "non_field_errors"

// matchTable maps known backend phrasings to kinds. Ordered, first match
// wins; matching is case-insensitive. The phrasings come from DRF,
// django-allauth and the project's own views, so several spellings map to
// one kind.
var matchTable = []struct {
	kind      Kind
	fragments []string
}{
	{KindEmailNotVerified, []string{"email_not_verified", "email not verified", "e-mail is not verified"}},
	{KindUsernameTaken, []string{"a user with that username already exists"}},
	{KindEmailTaken, []string{"a user is already registered with this e-mail address"}},
	{KindPasswordTooShort, []string{"this password is too short"}},
	{KindPasswordTooCommon, []string{"this password is too common"}},
	{KindPasswordAllNumeric, []string{"entirely numeric"}},
	{KindPasswordMismatch, []string{"passwords do not match", "password fields didn’t match", "password fields didn't match", "password mismatch"}},
	{KindInvalidEmailFormat, []string{"enter a valid email address"}},
	{KindInvalidCredentials, []string{"invalid credentials", "unable to log in", "no active account"}},
	{KindFieldBlank, []string{"may not be blank", "this field is required"}},
	{KindPlanInactive, []string{"plano inativo"}},
}

// Normalize converts one raw payload value into a Record. The value is the
// result of decoding arbitrary backend JSON: string, map, slice, or
// anything else. Unrecognized input falls through to KindUnknown with the
// raw text preserved.
func Normalize(raw any) Record {
	return NormalizeField("", raw)
}

// NormalizeField is Normalize with the originating form field attached.
func NormalizeField(field string, raw any) Record {
	// Unwrap one level of {"detail": ...} nesting.
	if m, ok := raw.(map[string]any); ok {
		if detail, ok := m["detail"]; ok {
			raw = detail
		}
	}

	// Unwrap a single-element array to its sole element.
	if list, ok := raw.([]any); ok && len(list) == 1 {
		raw = list[0]
	}

	text, ok := raw.(string)
	if !ok {
		return Record{Kind: KindUnknown, Field: field}
	}

	// Structured codes carry positional parameters and must be matched
	// before case folding, which would corrupt the embedded plan name.
	if strings.HasPrefix(text, contactLimitPrefix) {
		return contactLimitRecord(field, text)
	}

	msg := strings.ToLower(strings.TrimSpace(text))
	for _, entry := range matchTable {
		for _, fragment := range entry.fragments {
			if strings.Contains(msg, fragment) {
				return Record{Kind: entry.kind, Field: field, Raw: text}
			}
		}
	}

	return Record{Kind: KindUnknown, Field: field, Raw: text}
}

// NormalizeBody decodes a raw response body and produces the aggregated
// record list. A field-keyed object yields one record per field, with the
// non-field entry first so callers can show it as the primary message.
// Non-JSON bodies normalize as plain text.
func NormalizeBody(body []byte) []Record {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return []Record{Normalize(strings.TrimSpace(string(body)))}
	}

	m, ok := raw.(map[string]any)
	if !ok {
		return []Record{Normalize(raw)}
	}

	// {"detail": ...} is a single error, not a field map.
	if detail, ok := m["detail"]; ok && len(m) == 1 {
		return []Record{Normalize(detail)}
	}

	records := make([]Record, 0, len(m))
	if nonField, ok := m[nonFieldKey]; ok {
		records = append(records, Normalize(nonField))
	}
	for field, value := range m {
		if field == nonFieldKey {
			continue
		}
		records = append(records, NormalizeField(field, value))
	}

	if len(records) == 0 {
		return []Record{{Kind: KindUnknown, Raw: strings.TrimSpace(string(body))}}
	}
	return records
}

func contactLimitRecord(field, text string) Record {
	parts := strings.Split(text, "::")
	record := Record{Kind: KindContactLimitReached, Field: field, Raw: text}
	if len(parts) > 1 {
		record.Max, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		record.Plan = parts[2]
	}
	return record
}
