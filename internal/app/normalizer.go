/**
 * @description
 * This file turns a raw Dojah KYC callback into the flat verification record the
 * backend expects. Dojah nests the useful fields several levels deep and which
 * sub-objects are populated depends on the widget flow the user went through, so
 * extraction is expressed as an ordered list of independent rules. The first rule
 * that yields a name wins.
 *
 * Rule order:
 *   1. government_data.data.bvn.entity  (names, BVN number, method BVN)
 *   2. government_data.data.nin.entity  (names, NIN number, method NIN)
 *   3. user_data.data                   (names only)
 *   4. id.data.id_data                  (names, document number; surname punctuation stripped)
 *
 * Normalize never fails. Missing or malformed data degrades to empty strings,
 * UNKNOWN and "failed".
 */
package app

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/carepro/verification-service/internal/domain"
)

// Normalizer converts staged payloads into backend verification records.
type Normalizer struct {
	// IDPrefix is stripped from the correlation id to obtain the user id.
	IDPrefix string
	rules    []extractionRule
}

// extractionRule pulls identity fields out of one vendor sub-object.
type extractionRule struct {
	name    string
	extract func(payload map[string]any) (identityMatch, bool)
}

type identityMatch struct {
	firstName string
	lastName  string
	method    domain.VerificationMethod
	number    string
}

// NewNormalizer builds a normalizer with the default rule order.
func NewNormalizer(idPrefix string) *Normalizer {
	return &Normalizer{
		IDPrefix: idPrefix,
		rules:    defaultRules(),
	}
}

func defaultRules() []extractionRule {
	return []extractionRule{
		{name: "government_bvn", extract: governmentEntityRule("bvn", domain.MethodBVN)},
		{name: "government_nin", extract: governmentEntityRule("nin", domain.MethodNIN)},
		{name: "user_data", extract: userDataRule},
		{name: "id_document", extract: idDocumentRule},
	}
}

// Normalize maps a raw payload to a backend record. The output depends only on
// its inputs, which makes re-forwarding the same record safe.
func (n *Normalizer) Normalize(raw json.RawMessage, correlationID string) domain.NormalizedVerification {
	payload := decodeObject(raw)

	out := domain.NormalizedVerification{
		UserID:             n.userID(correlationID),
		VerificationStatus: domain.StatusFailed,
	}

	for _, rule := range n.rules {
		match, ok := rule.extract(payload)
		if !ok {
			continue
		}
		out.VerifiedFirstName = match.firstName
		out.VerifiedLastName = match.lastName
		out.VerificationMethod = match.method
		out.VerificationNo = match.number
		break
	}

	if out.VerificationMethod == "" {
		idType := stringAt(payload, "id_type")
		if idType == "" {
			idType = stringAt(payload, "verification_type")
		}
		out.VerificationMethod = methodFromIDType(idType)
	}

	if out.VerificationNo == "" {
		out.VerificationNo = stringAt(payload, "value")
	}
	if out.VerificationNo == "" {
		out.VerificationNo = stringAt(payload, "verification_value")
	}

	if flag, ok := payload["status"].(bool); ok && flag {
		out.VerificationStatus = domain.StatusVerified
	}

	return out
}

func (n *Normalizer) userID(correlationID string) string {
	id := strings.TrimSpace(correlationID)
	if n.IDPrefix != "" {
		id = strings.TrimPrefix(id, n.IDPrefix)
	}
	return id
}

func governmentEntityRule(key string, method domain.VerificationMethod) func(map[string]any) (identityMatch, bool) {
	return func(payload map[string]any) (identityMatch, bool) {
		entity := objectAt(payload, "data", "government_data", "data", key, "entity")
		if entity == nil {
			return identityMatch{}, false
		}
		m := identityMatch{
			firstName: stringAt(entity, "first_name"),
			lastName:  stringAt(entity, "last_name"),
			method:    method,
			number:    stringAt(entity, key),
		}
		return m, m.firstName != "" || m.lastName != ""
	}
}

func userDataRule(payload map[string]any) (identityMatch, bool) {
	data := objectAt(payload, "data", "user_data", "data")
	if data == nil {
		return identityMatch{}, false
	}
	m := identityMatch{
		firstName: stringAt(data, "first_name"),
		lastName:  stringAt(data, "last_name"),
	}
	return m, m.firstName != "" || m.lastName != ""
}

func idDocumentRule(payload map[string]any) (identityMatch, bool) {
	data := objectAt(payload, "data", "id", "data", "id_data")
	if data == nil {
		return identityMatch{}, false
	}
	m := identityMatch{
		firstName: stringAt(data, "first_name"),
		lastName:  trimTrailingPunct(stringAt(data, "last_name")),
		number:    stringAt(data, "document_number"),
	}
	return m, m.firstName != "" || m.lastName != ""
}

func methodFromIDType(idType string) domain.VerificationMethod {
	t := strings.ToUpper(strings.TrimSpace(idType))
	switch {
	case t == "":
		return domain.MethodUnknown
	case strings.Contains(t, "BVN"):
		return domain.MethodBVN
	case strings.Contains(t, "NIN"):
		return domain.MethodNIN
	default:
		return domain.MethodID
	}
}

// trimTrailingPunct removes OCR artefacts such as "DOE," from scanned surnames.
func trimTrailingPunct(s string) string {
	return strings.TrimSpace(strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	}))
}

func decodeObject(raw json.RawMessage) map[string]any {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

func objectAt(obj map[string]any, path ...string) map[string]any {
	cur := obj
	for _, key := range path {
		next, ok := cur[key].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return cur
}

// stringAt reads a scalar field as a trimmed string. Dojah sometimes sends
// identifiers as JSON numbers.
func stringAt(obj map[string]any, key string) string {
	switch v := obj[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
