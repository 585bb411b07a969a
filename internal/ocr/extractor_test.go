package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/composedlabyrinth/SwiftKYC/internal/model"
)

func lines(texts ...string) []Segment {
	segs := make([]Segment, len(texts))
	for i, t := range texts {
		segs[i] = Segment{Text: t, Confidence: 0.9}
	}
	return segs
}

func staticEngine(segs []Segment) Engine {
	return EngineFunc(func(context.Context, []byte) ([]Segment, error) { return segs, nil })
}

func TestAlphanum10Card(t *testing.T) {
	x := NewExtractor(staticEngine(lines(
		"INCOME TAX DEPARTMENT",
		"GOVT. OF INDIA",
		"Permanent Account Number Card",
		"ABCDE1234F",
		"Name",
		"RAVI KUMAR SHARMA",
		"Father's Name",
		"SURESH SHARMA",
		"Date of Birth",
		"01/01/1990",
	)))

	res, err := x.Extract(context.Background(), []byte("img"), model.DocTypeAlphanum10)
	require.NoError(t, err)
	assert.Equal(t, "ABCDE1234F", res.DocumentNumber)
	assert.Equal(t, "RAVI KUMAR SHARMA", res.Name)
	assert.InDelta(t, 0.9, res.QualityScore, 1e-9)
	assert.Contains(t, res.RawText, "INCOME TAX DEPARTMENT GOVT. OF INDIA")
}

func TestAlphanum10MisreadRepair(t *testing.T) {
	x := NewExtractor(nil)
	res := x.FromSegments(lines("INCOME TAX DEPARTMENT", "ABCDE12O4F", "PRIYA NAIR"), model.DocTypeAlphanum10)
	assert.Equal(t, "ABCDE1204F", res.DocumentNumber)
	assert.Equal(t, "PRIYA NAIR", res.Name, "first candidate after the number")
}

func TestAlphanum10MisreadsOnlyInDigitPositions(t *testing.T) {
	x := NewExtractor(nil)
	assert.Empty(t, x.findAlphanum10("0BCDE1234F"), "letter position holding a digit is not repaired")
	assert.Equal(t, "ABCDE1234F", x.findAlphanum10("XXABCDE1234FYY"))
	assert.Equal(t, "ABCDE5878F", x.findAlphanum10("ABCDES8T8F"))
}

func TestNumeric12Card(t *testing.T) {
	x := NewExtractor(nil)
	res := x.FromSegments(lines(
		"भारत सरकार",
		"Government of India",
		"Anita Devi",
		"DOB: 12/05/1985",
		"FEMALE",
		"1234 5678 9012",
		"मेरा आधार, मेरी पहचान",
	), model.DocTypeNumeric12)

	assert.Equal(t, "123456789012", res.DocumentNumber)
	assert.Equal(t, "Anita Devi", res.Name)
}

func TestNumeric12Contiguous(t *testing.T) {
	assert.Equal(t, "123456789012", findNumeric12("VID 123456789012 issued"))
	assert.Equal(t, "987654321098", findNumeric12("9876 54321098"))
	assert.Empty(t, findNumeric12("1234 5678 901"))
}

func TestNameLabelInEitherScript(t *testing.T) {
	x := NewExtractor(nil)
	res := x.FromSegments(lines(
		"Government of India",
		"नाम / Name",
		"Rohan Mehta",
		"1111 2222 3333",
	), model.DocTypeNumeric12)
	assert.Equal(t, "Rohan Mehta", res.Name)
}

func TestLabelWindowIsBounded(t *testing.T) {
	x := NewExtractor(nil)
	segs := lines("Name", "DOB", "MALE", "Address", "Mobile", "Signature", "Unique ID", "Kiran Rao")
	res := x.FromSegments(segs, model.DocTypePassport)
	// Outside the label window, but the unbounded after-label strategy finds it.
	assert.Equal(t, "Kiran Rao", res.Name)
	assert.Empty(t, res.DocumentNumber)
}

func TestNoNameIsNotAnError(t *testing.T) {
	x := NewExtractor(nil)
	res := x.FromSegments(lines("INCOME TAX DEPARTMENT", "ABCDE1234F", "01/01/1990"), model.DocTypeAlphanum10)
	assert.Equal(t, "ABCDE1234F", res.DocumentNumber)
	assert.Empty(t, res.Name)
}

func TestLooksLikeName(t *testing.T) {
	c := DefaultHeuristics.compile()

	accept := []string{"Kamalesh Pandey", "Taxila Rao", "Mohd Arif Khan", "A. P. J. Abdul Kalam"}
	for _, s := range accept {
		assert.True(t, c.looksLikeName(s), s)
	}

	reject := []string{
		"",
		"Ravi",
		"Ravi Kumar 2",
		"Income Tax Department",
		"Govl of Indla",
		"Father's Name",
		"Permanent Account",
		"Account Holder Signature",
		"one two three four five six seven",
		"भारत सरकार",
	}
	for _, s := range reject {
		assert.False(t, c.looksLikeName(s), s)
	}
}

func TestHeaderPhrases(t *testing.T) {
	c := DefaultHeuristics.compile()
	assert.True(t, c.isHeader("INCOME TAX DEPARTMENT"))
	assert.True(t, c.isHeader("IncomeTaxDepartment"), "glued phrase")
	assert.True(t, c.isHeader("आयकर विभाग"))
	assert.False(t, c.isHeader("Anita Devi"))
}

func TestMeanConfidenceScales(t *testing.T) {
	segs := []Segment{{Text: "a", Confidence: 0.9}, {Text: "b", Confidence: 80}}
	assert.InDelta(t, 0.85, meanConfidence(segs), 1e-9)
	assert.Zero(t, meanConfidence(nil))
}

func TestEmptySegmentsAreDropped(t *testing.T) {
	x := NewExtractor(nil)
	res := x.FromSegments([]Segment{{Text: "  ", Confidence: 0}, {Text: "Meera Iyer", Confidence: 1}}, model.DocTypeVoterID)
	assert.Equal(t, "Meera Iyer", res.Name)
	assert.Equal(t, "Meera Iyer", res.RawText)
	assert.InDelta(t, 1.0, res.QualityScore, 1e-9)
}

func TestEngineErrorIsWrapped(t *testing.T) {
	boom := errors.New("engine crashed")
	x := NewExtractor(EngineFunc(func(context.Context, []byte) ([]Segment, error) { return nil, boom }))
	_, err := x.Extract(context.Background(), nil, model.DocTypeNumeric12)
	require.ErrorIs(t, err, boom)
}

func TestCustomHeuristics(t *testing.T) {
	h := DefaultHeuristics
	h.BadKeywords = append([]string{"republic"}, h.BadKeywords...)
	x := NewExtractor(nil, WithHeuristics(h))
	res := x.FromSegments(lines("Republic Of Nowhere", "Jane Doe"), model.DocTypePassport)
	assert.Equal(t, "Jane Doe", res.Name)
}
