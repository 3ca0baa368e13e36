package siv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePlate(t *testing.T) {
	cases := map[string]string{
		"AB-123-CD":   "AB-123-CD",
		"ab123cd":     "AB-123-CD",
		" ab 123 cd":  "AB-123-CD",
		"FZ.456.GH":   "FZ-456-GH",
		"123 ABC 75":  "123 ABC 75",
		"123abc75":    "123 ABC 75",
		"1-A-2A":      "1 A 2A",
		"9999 ZZ 974": "9999 ZZ 974",
	}
	for in, want := range cases {
		got, err := NormalizePlate(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}
}

func TestNormalizePlate_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"AB-12-CD",
		"AB_123_CD",
		"OB-123-CD",
		"AB-123-CU",
		"SS-123-AB",
		"12345 AB 75",
		"AB-123-CD-EF",
	} {
		_, err := NormalizePlate(in)
		assert.ErrorIs(t, err, ErrInvalidPlate, in)
	}
}
