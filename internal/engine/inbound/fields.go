package inbound

// Canonical fields extracted from an arbitrary inbound payload. External
// systems name these differently, so each logical field accepts a list of
// aliases; the first non-empty one wins, in the listed order.
type Fields struct {
	Email   string
	Name    string
	Company string
	Message string
}

var (
	emailAliases   = []string{"email", "contact_email"}
	nameAliases    = []string{"name", "contact_name", "full_name"}
	companyAliases = []string{"company", "company_name"}
)

func ExtractFields(payload map[string]interface{}) Fields {
	return Fields{
		Email:   firstString(payload, emailAliases),
		Name:    firstString(payload, nameAliases),
		Company: firstString(payload, companyAliases),
		Message: firstString(payload, []string{"message"}),
	}
}

func firstString(payload map[string]interface{}, keys []string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
