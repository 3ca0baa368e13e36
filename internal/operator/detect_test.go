package operator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simfleet-svr/internal/sim"
)

func TestValidICCID(t *testing.T) {
	assert.True(t, ValidICCID("8944500000001234562"))
	assert.True(t, ValidICCID("89330100000000000012"))
	assert.True(t, ValidICCID("894450000000123456"), "18 digits, no check digit")
	assert.False(t, ValidICCID("8944500000001234563"), "bad check digit")
	assert.False(t, ValidICCID("7944500000001234562"), "not 89")
	assert.False(t, ValidICCID("89445000000012345X"))
	assert.False(t, ValidICCID("8944"))
}

func TestLuhnDigit(t *testing.T) {
	assert.Equal(t, byte('2'), LuhnDigit("894450000000123456"))
	assert.Equal(t, byte('9'), LuhnDigit("894478000000000042"))
}

func TestDetectFromICCID(t *testing.T) {
	op, ok := DetectFromICCID("8944500000001234562")
	require.True(t, ok)
	assert.Equal(t, "Things Mobile", op.Name)
	assert.Equal(t, sim.ProviderThingsMobile, op.Platform)
	assert.Equal(t, SourceICCID, op.Source)

	op, ok = DetectFromICCID("89330100000000000012")
	require.True(t, ok)
	assert.Equal(t, "Orange France", op.Name)
	assert.Equal(t, "208", op.MCC)
	assert.Equal(t, "01", op.MNC)

	op, ok = DetectFromICCID("89012600000000000011")
	require.True(t, ok)
	assert.Equal(t, "T-Mobile US", op.Name, "longer prefix wins")

	// unknown issuer, country only
	op, ok = DetectFromICCID("8935199999999999999")
	require.True(t, ok)
	assert.Equal(t, "", op.Name)
	assert.Equal(t, "PT", op.Country)

	op, ok = DetectFromICCID("8901999999999999999")
	require.True(t, ok)
	assert.Equal(t, "US", op.Country)

	_, ok = DetectFromICCID("1234567890123456789")
	assert.False(t, ok)
}

func TestSplitIMSI(t *testing.T) {
	mcc, mnc, ok := SplitIMSI("208011234567890")
	require.True(t, ok)
	assert.Equal(t, "208", mcc)
	assert.Equal(t, "01", mnc)

	mcc, mnc, ok = SplitIMSI("310260123456789")
	require.True(t, ok)
	assert.Equal(t, "310", mcc)
	assert.Equal(t, "260", mnc)

	_, _, ok = SplitIMSI("20801")
	assert.False(t, ok)
}

func TestDetectFromIMSI(t *testing.T) {
	op, ok := DetectFromIMSI("234251234567890")
	require.True(t, ok)
	assert.Equal(t, "Truphone", op.Name)
	assert.Equal(t, "GB", op.Country)
	assert.Equal(t, sim.ProviderTruphone, op.Platform)

	op, ok = DetectFromIMSI("208999999999999")
	require.True(t, ok, "country known even if network isn't")
	assert.Equal(t, "FR", op.Country)
	assert.Equal(t, "", op.Name)

	_, ok = DetectFromIMSI("999991234567890")
	assert.False(t, ok)
}

func TestDetectFromMSISDN(t *testing.T) {
	op, ok := DetectFromMSISDN("+33 6 12 34 56 78")
	require.True(t, ok)
	assert.Equal(t, "FR", op.Country)
	assert.Equal(t, SourceMSISDN, op.Source)

	op, ok = DetectFromMSISDN("351912345678")
	require.True(t, ok)
	assert.Equal(t, "PT", op.Country)

	_, ok = DetectFromMSISDN("123")
	assert.False(t, ok)
}

func TestDetect_Precedence(t *testing.T) {
	s := sim.SIM{
		ICCID:    "89330100000000000012",
		IMSI:     "234251234567890",
		MSISDN:   "33612345678",
		Provider: sim.ProviderPhenix,
	}
	op := Detect(s)
	assert.Equal(t, SourceIMSI, op.Source)
	assert.Equal(t, "Truphone", op.Name)

	s.IMSI = ""
	op = Detect(s)
	assert.Equal(t, SourceICCID, op.Source)
	assert.Equal(t, "Orange France", op.Name)
	assert.Equal(t, sim.ProviderPhenix, op.Platform, "falls back to owning provider")

	s.ICCID = ""
	op = Detect(s)
	assert.Equal(t, SourceMSISDN, op.Source)
	assert.Equal(t, "FR", op.Country)

	s.MSISDN = ""
	op = Detect(s)
	assert.Equal(t, SourceProvider, op.Source)
	assert.Equal(t, sim.ProviderPhenix, op.Platform)

	s.Provider = sim.ProviderFlespi
	assert.Equal(t, SourceNone, Detect(s).Source)
}

func TestPlatformForICCID(t *testing.T) {
	assert.Equal(t, sim.ProviderTruphone, PlatformForICCID("8944780000000000429"))
	assert.Equal(t, sim.ProviderPhenix, PlatformForICCID("89332700123456789019"))
	assert.Equal(t, sim.ProviderUnknown, PlatformForICCID("89330100000000000012"))
	assert.Equal(t, sim.ProviderUnknown, PlatformForICCID("garbage"))
}
