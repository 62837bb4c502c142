package discovery

import (
	"crypto/sha1"
	"fmt"
	"math/big"
	"regexp"
	"strconv"

	"github.com/JakeFAU/edgar-mirror/internal/filing"
)

var reShardSpec = regexp.MustCompile(`^\s*(\d+)\s*/\s*(\d+)\s*$`)

// Shard selects the N-th of K deterministic partitions of a target set.
// Running the same scan on K machines with N ranged over 1..K reconstructs
// the full set with no overlap and no coordination.
type Shard struct {
	N int
	K int
}

// ParseShard parses an "N/K" spec with 1 <= N <= K.
func ParseShard(spec string) (Shard, error) {
	m := reShardSpec.FindStringSubmatch(spec)
	if m == nil {
		return Shard{}, fmt.Errorf("invalid shard spec %q: use N/K, e.g. 1/3", spec)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return Shard{}, fmt.Errorf("invalid shard spec %q: %w", spec, err)
	}
	k, err := strconv.Atoi(m[2])
	if err != nil {
		return Shard{}, fmt.Errorf("invalid shard spec %q: %w", spec, err)
	}
	sh := Shard{N: n, K: k}
	if sh.K <= 0 || sh.N <= 0 || sh.N > sh.K {
		return Shard{}, fmt.Errorf("invalid shard spec %q: must satisfy 1 <= N <= K", spec)
	}
	return sh, nil
}

// Filter keeps the references belonging to this shard. Partitioning hashes
// the accession number, the stable identity of a filing, so every machine
// computes the same assignment.
func (sh Shard) Filter(refs []filing.Reference) []filing.Reference {
	k := big.NewInt(int64(sh.K))
	want := int64(sh.N - 1)
	out := make([]filing.Reference, 0, len(refs)/sh.K+1)
	for _, r := range refs {
		sum := sha1.Sum([]byte(r.AccessionNo))
		mod := new(big.Int).Mod(new(big.Int).SetBytes(sum[:]), k)
		if mod.Int64() == want {
			out = append(out, r)
		}
	}
	return out
}
