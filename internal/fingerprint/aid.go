package fingerprint

import (
	"crypto/sha1"
	"encoding/base64"

	"github.com/rawblock/idps-compare/internal/normalize"
	"github.com/rawblock/idps-compare/pkg/models"
)

// AID computes the All-ID join key for a flow: base64(sha1(community_id +
// "-" + six-decimal-timestamp)). Community-ID alone collides across
// repeated connections between the same endpoints; folding in the
// normalized timestamp disambiguates them while staying bit-identical
// across input formats with differing decimal precision.
//
// Returns "" when the community ID could not be computed (unknown
// protocol); the caller is expected to skip the flow in that case rather
// than store an AID derived from an empty fingerprint.
func AID(tuple models.FlowTuple, ts float64) string {
	cid := CommunityID(tuple)
	if cid == "" {
		return ""
	}
	payload := cid + "-" + normalize.SixDecimal(ts)
	sum := sha1.Sum([]byte(payload))
	return base64.StdEncoding.EncodeToString(sum[:])
}
