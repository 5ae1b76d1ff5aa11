package pool

import (
	"fmt"

	"github.com/keelswap/keel/internal/types"
)

// OwnershipProposal is a pending owner handover with an expiry window.
type OwnershipProposal struct {
	ProposedOwner string
	ExpiresAt     uint64
}

// Ownership implements the propose/accept owner-transfer flow shared by
// pools and the incentives engine.
type Ownership struct {
	Owner    string
	proposal *OwnershipProposal
}

// NewOwnership starts with the given owner and no pending proposal.
func NewOwnership(owner string) Ownership {
	return Ownership{Owner: owner}
}

// AssertOwner fails with Unauthorized unless sender is the current owner.
func (o *Ownership) AssertOwner(sender string) error {
	if sender != o.Owner {
		return types.ErrUnauthorized
	}
	return nil
}

// Propose registers a new handover, replacing any pending one. Only the
// current owner may propose, and not to themselves.
func (o *Ownership) Propose(sender, newOwner string, expiresIn, now uint64) error {
	if err := o.AssertOwner(sender); err != nil {
		return err
	}
	if newOwner == o.Owner {
		return fmt.Errorf("proposed owner equals current owner: %w", types.ErrUnauthorized)
	}
	o.proposal = &OwnershipProposal{
		ProposedOwner: newOwner,
		ExpiresAt:     now + expiresIn,
	}
	return nil
}

// Drop removes the pending proposal; only the owner may drop, and dropping
// without a proposal is an explicit error.
func (o *Ownership) Drop(sender string) error {
	if err := o.AssertOwner(sender); err != nil {
		return err
	}
	if o.proposal == nil {
		return types.ErrOwnershipProposalNotFound
	}
	o.proposal = nil
	return nil
}

// Claim completes the handover. Only the proposed owner may claim, and only
// before the expiry window closes.
func (o *Ownership) Claim(sender string, now uint64) error {
	if o.proposal == nil {
		return types.ErrOwnershipProposalNotFound
	}
	if sender != o.proposal.ProposedOwner {
		return types.ErrUnauthorized
	}
	if now > o.proposal.ExpiresAt {
		return types.ErrOwnershipProposalExpired
	}
	o.Owner = o.proposal.ProposedOwner
	o.proposal = nil
	return nil
}

// PendingProposal exposes the current proposal for queries, nil when none.
func (o *Ownership) PendingProposal() *OwnershipProposal {
	return o.proposal
}
