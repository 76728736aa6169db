package app

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/carepro/verification-service/internal/domain"
)

const bvnPayload = `{
	"status": true,
	"verification_status": "Completed",
	"reference_id": "DJ-ABC123",
	"data": {
		"government_data": {"data": {"bvn": {"entity": {"bvn": "123", "first_name": "Jane ", "last_name": "Doe"}}}}
	}
}`

func TestNormalize_GovernmentBVN(t *testing.T) {
	n := NewNormalizer("")
	got := n.Normalize(json.RawMessage(bvnPayload), "DJ-ABC123")

	want := domain.NormalizedVerification{
		UserID:             "DJ-ABC123",
		VerifiedFirstName:  "Jane",
		VerifiedLastName:   "Doe",
		VerificationMethod: domain.MethodBVN,
		VerificationNo:     "123",
		VerificationStatus: domain.StatusVerified,
	}
	if got != want {
		t.Fatalf("unexpected record\n got: %+v\nwant: %+v", got, want)
	}
}

func TestNormalize_IsDeterministic(t *testing.T) {
	n := NewNormalizer("")
	first, _ := json.Marshal(n.Normalize(json.RawMessage(bvnPayload), "DJ-ABC123"))
	second, _ := json.Marshal(n.Normalize(json.RawMessage(bvnPayload), "DJ-ABC123"))
	if string(first) != string(second) {
		t.Fatalf("normalization is not deterministic:\n%s\n%s", first, second)
	}
}

func TestNormalize_DegradesGracefully(t *testing.T) {
	n := NewNormalizer("")
	inputs := []string{`{}`, ``, `not json`, `[1,2,3]`, `null`, `{"data": "oops"}`}

	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			got := n.Normalize(json.RawMessage(input), "ref-1")
			if got.VerifiedFirstName != "" || got.VerifiedLastName != "" {
				t.Fatalf("expected empty names, got %+v", got)
			}
			if got.VerificationMethod != domain.MethodUnknown {
				t.Fatalf("expected UNKNOWN method, got %q", got.VerificationMethod)
			}
			if got.VerificationStatus != domain.StatusFailed {
				t.Fatalf("expected failed status, got %q", got.VerificationStatus)
			}
			if got.UserID != "ref-1" {
				t.Fatalf("expected user id to come from correlation id, got %q", got.UserID)
			}
		})
	}
}

func TestNormalize_RulePriority(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    domain.NormalizedVerification
	}{
		{
			name: "government data beats user data",
			payload: `{"status": true, "data": {
				"user_data": {"data": {"first_name": "Janet", "last_name": "Doh"}},
				"government_data": {"data": {"bvn": {"entity": {"bvn": 22211100099, "first_name": "Jane", "last_name": "Doe"}}}}
			}}`,
			want: domain.NormalizedVerification{
				UserID: "u1", VerifiedFirstName: "Jane", VerifiedLastName: "Doe",
				VerificationMethod: domain.MethodBVN, VerificationNo: "22211100099", VerificationStatus: domain.StatusVerified,
			},
		},
		{
			name: "nin entity sets NIN method",
			payload: `{"status": true, "data": {
				"government_data": {"data": {"nin": {"entity": {"nin": "70123456789", "first_name": "Ada", "last_name": "Obi"}}}}
			}}`,
			want: domain.NormalizedVerification{
				UserID: "u1", VerifiedFirstName: "Ada", VerifiedLastName: "Obi",
				VerificationMethod: domain.MethodNIN, VerificationNo: "70123456789", VerificationStatus: domain.StatusVerified,
			},
		},
		{
			name: "user data falls back to id_type for method",
			payload: `{"status": false, "id_type": "NIN", "value": "70123456789", "data": {
				"user_data": {"data": {"first_name": "Ada", "last_name": "Obi"}},
				"id": {"data": {"id_data": {"first_name": "ADA", "last_name": "OBI,"}}}
			}}`,
			want: domain.NormalizedVerification{
				UserID: "u1", VerifiedFirstName: "Ada", VerifiedLastName: "Obi",
				VerificationMethod: domain.MethodNIN, VerificationNo: "70123456789", VerificationStatus: domain.StatusFailed,
			},
		},
		{
			name: "scanned id strips surname punctuation",
			payload: `{"status": true, "id_type": "PASSPORT", "data": {
				"id": {"data": {"id_data": {"first_name": "JOHN", "last_name": "SMITH.,", "document_number": "A0000001"}}}
			}}`,
			want: domain.NormalizedVerification{
				UserID: "u1", VerifiedFirstName: "JOHN", VerifiedLastName: "SMITH",
				VerificationMethod: domain.MethodID, VerificationNo: "A0000001", VerificationStatus: domain.StatusVerified,
			},
		},
		{
			name:    "status must be strictly true",
			payload: `{"status": "true", "id_type": "BVN"}`,
			want: domain.NormalizedVerification{
				UserID: "u1", VerificationMethod: domain.MethodBVN, VerificationStatus: domain.StatusFailed,
			},
		},
		{
			name: "entity without names does not match",
			payload: `{"status": true, "data": {
				"government_data": {"data": {"bvn": {"entity": {"bvn": "123"}}}},
				"user_data": {"data": {"first_name": "Jane", "last_name": "Doe"}}
			}}`,
			want: domain.NormalizedVerification{
				UserID: "u1", VerifiedFirstName: "Jane", VerifiedLastName: "Doe",
				VerificationMethod: domain.MethodUnknown, VerificationStatus: domain.StatusVerified,
			},
		},
	}

	n := NewNormalizer("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := n.Normalize(json.RawMessage(tt.payload), "u1")
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("unexpected record\n got: %+v\nwant: %+v", got, tt.want)
			}
		})
	}
}

func TestNormalize_StripsCorrelationPrefix(t *testing.T) {
	n := NewNormalizer("carepro_")
	got := n.Normalize(json.RawMessage(`{}`), "carepro_5f2b9c")
	if got.UserID != "5f2b9c" {
		t.Fatalf("expected prefix to be stripped, got %q", got.UserID)
	}

	got = n.Normalize(json.RawMessage(`{}`), "DJ-ABC123")
	if got.UserID != "DJ-ABC123" {
		t.Fatalf("expected unprefixed id to pass through, got %q", got.UserID)
	}
}

func TestMethodFromIDType(t *testing.T) {
	tests := map[string]domain.VerificationMethod{
		"":             domain.MethodUnknown,
		"  ":           domain.MethodUnknown,
		"bvn":          domain.MethodBVN,
		"NIN_SLIP":     domain.MethodNIN,
		"vnin":         domain.MethodNIN,
		"DL":           domain.MethodID,
		"VOTERS_CARD":  domain.MethodID,
		"INT_PASSPORT": domain.MethodID,
	}
	for input, want := range tests {
		if got := methodFromIDType(input); got != want {
			t.Errorf("methodFromIDType(%q) = %q, want %q", input, got, want)
		}
	}
}
