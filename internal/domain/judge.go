package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// JudgeRegistration is the registry's record for one judge: whether they are
// currently registered and their per-asset minimum fee. Registration is
// consulted only at bond creation; deregistration never invalidates bonds
// that already name the judge.
type JudgeRegistration struct {
	Judge      common.Address
	Registered bool
	MinFees    map[common.Address]*big.Int
}

// MinFee returns the judge's minimum fee for the given asset, defaulting to
// zero when none has been set.
func (j JudgeRegistration) MinFee(asset common.Address) *big.Int {
	if j.MinFees != nil {
		if fee, ok := j.MinFees[asset]; ok && fee != nil {
			return new(big.Int).Set(fee)
		}
	}
	return new(big.Int)
}

// Clone returns a deep copy of the registration.
func (j JudgeRegistration) Clone() JudgeRegistration {
	out := j
	if j.MinFees != nil {
		out.MinFees = make(map[common.Address]*big.Int, len(j.MinFees))
		for asset, fee := range j.MinFees {
			out.MinFees[asset] = new(big.Int).Set(fee)
		}
	}
	return out
}
