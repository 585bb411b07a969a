package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

func TestSequenceRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"ravi kumar sharma", "ravi k sharma", 0.8666666},
		{"ravi sharma", "priya nair", 0.3809523},
		{"abcd", "bcda", 0.75},
		{"kitten", "sitting", 0.6153846},
		{"anita devi", "anita devi", 1},
		{"", "", 1},
		{"abc", "", 0},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, SequenceRatio(tc.a, tc.b), 1e-6, "%q vs %q", tc.a, tc.b)
	}
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "ravi kumar", NormalizeName("  Mr. RAVI   Kumar ", DefaultHonorifics))
	assert.Equal(t, "arif khan", NormalizeName("Md. Arif-Khan", DefaultHonorifics))
	assert.Equal(t, "", NormalizeName("Dr.", DefaultHonorifics))
	assert.Equal(t, "o brien", NormalizeName("O'Brien", nil))
}

func TestNameAcceptedOnTokenOverlap(t *testing.T) {
	m := NewMatcher()
	res := m.Match(Input{
		DocType:       model.DocTypeAlphanum10,
		EnteredNumber: "ABCDE1234F",
		OCRNumber:     "abcde 1234f",
		EnteredName:   "Ravi Kumar Sharma",
		OCRName:       "RAVI K SHARMA",
	})

	assert.True(t, res.NumberMatch)
	assert.True(t, res.NameMatch)
	assert.True(t, res.Accepted())
	assert.Empty(t, res.Reasons)
	assert.InDelta(t, 0.8667, res.FullSimilarity, 1e-3)
	assert.InDelta(t, 0.6667, res.TokenSimilarity, 1e-3)
	assert.InDelta(t, 0.7867, res.Combined, 1e-3)
}

func TestHighTokenOverlapOverridesWeakFullScore(t *testing.T) {
	m := NewMatcher()
	full, token, combined := m.NameScores("Li", "Li Qwertyuiopasdfghjklzxcvbnmqwertyuiop")
	require.Less(t, combined, 0.5)
	require.Less(t, full, 0.2)
	require.Equal(t, 1.0, token)

	res := m.Match(Input{
		DocType:       model.DocTypePassport,
		EnteredNumber: "K1234567",
		OCRNumber:     "K1234567",
		EnteredName:   "Li",
		OCRName:       "Li Qwertyuiopasdfghjklzxcvbnmqwertyuiop",
	})
	assert.True(t, res.Accepted())
}

func TestNameMismatchDiagnostic(t *testing.T) {
	res := NewMatcher().Match(Input{
		DocType:       model.DocTypeAlphanum10,
		EnteredNumber: "ABCDE1234F",
		OCRNumber:     "ABCDE1234F",
		EnteredName:   "Ravi Sharma",
		OCRName:       "Priya Nair",
	})
	assert.True(t, res.NumberMatch)
	assert.False(t, res.NameMatch)
	require.Len(t, res.Reasons, 1)
	assert.Equal(t,
		"OCR_NAME_MISMATCH entered='ravi sharma' ocr='priya nair' full_sim=0.38 token_sim=0.00 combined=0.23",
		res.Reasons[0])
}

func TestNumeric12Numbers(t *testing.T) {
	m := NewMatcher()
	match := func(entered, read string) Result {
		return m.Match(Input{
			DocType:       model.DocTypeNumeric12,
			EnteredNumber: entered,
			OCRNumber:     read,
			EnteredName:   "Anita Devi",
			OCRName:       "Anita Devi",
		})
	}

	assert.True(t, match("123456789012", "1234 5678 9012").NumberMatch)
	fallback := match("000056789012", "999956789012")
	assert.True(t, fallback.NumberMatch, "last four digits agree")
	assert.True(t, fallback.LastFourOnly)
	assert.False(t, match("123456789012", "1234 5678 9012").LastFourOnly)

	res := match("123456789012", "123456789013")
	assert.False(t, res.NumberMatch)
	assert.Equal(t, []string{"OCR_NUMBER_MISMATCH_NUMERIC12 entered='123456789012' ocr='123456789013'"}, res.Reasons)

	strict := NewMatcher(WithLastFourFallback(false))
	assert.False(t, strict.Match(Input{
		DocType: model.DocTypeNumeric12, EnteredNumber: "000056789012", OCRNumber: "999956789012",
	}).NumberMatch)
}

func TestMissingValues(t *testing.T) {
	res := NewMatcher().Match(Input{DocType: model.DocTypeAlphanum10, EnteredNumber: "ABCDE1234F"})
	assert.False(t, res.Accepted())
	assert.Equal(t, []string{
		"OCR_NUMBER_MISSING entered_present=yes ocr_present=no",
		ReasonEnteredNameEmpty,
		ReasonOCRNameEmpty,
	}, res.Reasons)
	assert.Equal(t,
		"OCR_NUMBER_MISSING entered_present=yes ocr_present=no;OCR_NAME_MISSING_ENTERED_NAME_EMPTY;OCR_NAME_MISSING_OCR_NAME_EMPTY;OCR_RAW_LEN=5",
		res.FailureReason("hello"))
}

func TestAlphanum10Mismatch(t *testing.T) {
	res := NewMatcher().Match(Input{
		DocType: model.DocTypeAlphanum10, EnteredNumber: "ABCDE1234F", OCRNumber: "ABCDE1234G",
		EnteredName: "Ravi Sharma", OCRName: "Ravi Sharma",
	})
	assert.False(t, res.NumberMatch)
	assert.True(t, res.NameMatch)
	assert.Equal(t, "OCR_NUMBER_MISMATCH_ALPHANUM10 entered='ABCDE1234F' ocr='ABCDE1234G'", res.FailureReason(""))
}

func TestOtherTypesCompareVerbatim(t *testing.T) {
	res := NewMatcher().Match(Input{
		DocType: model.DocTypeVoterID, EnteredNumber: "ABC123", OCRNumber: "abc123",
		EnteredName: "Ravi Sharma", OCRName: "Ravi Sharma",
	})
	assert.False(t, res.NumberMatch)
	assert.Equal(t, []string{"OCR_NUMBER_MISMATCH entered='ABC123' ocr='abc123'"}, res.Reasons)
}

func TestFailureReasonDefault(t *testing.T) {
	assert.Equal(t, ReasonGenericMismatch, Result{}.FailureReason(""))
}
