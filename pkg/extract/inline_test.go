package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanInlineKeysSplitsGluedKeyword(t *testing.T) {
	text := "livinCareLandingCallUsCardVoipTitleLabelELSElivinCareLandingCallUsCardCallCenterTitleLabel"

	keys := ScanInlineKeys(text)
	require.Len(t, keys, 2)
	assert.Equal(t, "livinCareLandingCallUsCardVoipTitleLabel", keys[0])
	assert.Equal(t, "livinCareLandingCallUsCardCallCenterTitleLabel", keys[1])
}

func TestScanInlineKeysKeepsKeywordSubstringsInsideWords(t *testing.T) {
	// "and" inside "Landing" must not split the identifier
	keys := ScanInlineKeys("show livinCareLandingHeroTitle here")
	require.Len(t, keys, 1)
	assert.Equal(t, "livinCareLandingHeroTitle", keys[0])
}

func TestScanInlineKeysSpaceSeparatedKeywords(t *testing.T) {
	keys := ScanInlineKeys("if livinCareLandingHeroTitle else livinCareLandingHeroSubtitle then done")
	require.Len(t, keys, 2)
	assert.Equal(t, "livinCareLandingHeroTitle", keys[0])
	assert.Equal(t, "livinCareLandingHeroSubtitle", keys[1])
}

func TestScanInlineKeysMinLength(t *testing.T) {
	// camelCase but shorter than the minimum
	assert.Empty(t, ScanInlineKeys("loginTitle"))
	// exactly at the boundary
	assert.Equal(t, []string{"loginTitleLabel"}, ScanInlineKeys("loginTitleLabel"))
}

func TestScanInlineKeysRequiresUppercase(t *testing.T) {
	assert.Empty(t, ScanInlineKeys("alllowercaseidentifier"))
}

func TestScanInlineKeysRequiresLowercaseStart(t *testing.T) {
	assert.Empty(t, ScanInlineKeys("CapitalizedCamelCaseIdentifier"))
}

func TestScanInlineKeysRejectsPropertyAccess(t *testing.T) {
	assert.Empty(t, ScanInlineKeys("config.livinCareLandingHeroTitle"),
		"dot-preceded identifiers are property accesses")

	// the same identifier without a leading dot is accepted
	keys := ScanInlineKeys("config livinCareLandingHeroTitle")
	assert.Equal(t, []string{"livinCareLandingHeroTitle"}, keys)
}

func TestScanInlineKeysMixedProse(t *testing.T) {
	text := `When the VOIP card renders use livinCareLandingCallUsCardVoipTitleLabel,
otherwise fall back to livinCareLandingCallUsCardCallCenterTitleLabel.`

	keys := ScanInlineKeys(text)
	require.Len(t, keys, 2)
	assert.Equal(t, "livinCareLandingCallUsCardVoipTitleLabel", keys[0])
	assert.Equal(t, "livinCareLandingCallUsCardCallCenterTitleLabel", keys[1])
}
