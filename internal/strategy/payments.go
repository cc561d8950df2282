package strategy

import (
	"fmt"

	"waveline.io/courier/internal/domain"
)

// registerPayments wires purchases, tips, and reward challenges.
func (r *Registry) registerPayments() {
	r.register(domain.TypeUSDCPurchaseSeller, renderPurchaseSeller)
	r.register(domain.TypeUSDCPurchaseBuyer, renderPurchaseBuyer)
	r.register(domain.TypeTipReceive, renderTipReceive)
	r.register(domain.TypeChallengeReward, renderChallengeReward)
}

func renderPurchaseSeller(rc renderContext) (domain.RenderedMessage, error) {
	buyer, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "Track Sold! 💰",
		Body: fmt.Sprintf("Congrats, %s just bought your %s %s for $%s!",
			buyer.Name, entityNoun(entity.Type), entity.Name, rc.rec.Payload.Amount),
	}, nil
}

func renderPurchaseBuyer(rc renderContext) (domain.RenderedMessage, error) {
	entity, err := rc.entity()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	seller, ok := rc.entities.User(rc.rec.Payload.EntityOwnerID)
	if !ok {
		return domain.RenderedMessage{}, missingEntity("seller %d not found", rc.rec.Payload.EntityOwnerID)
	}
	return domain.RenderedMessage{
		Title: "Purchase Successful! 🛒",
		Body: fmt.Sprintf("You just purchased %s from %s!",
			entity.Name, seller.Name),
	}, nil
}

func renderTipReceive(rc renderContext) (domain.RenderedMessage, error) {
	sender, err := rc.initiator()
	if err != nil {
		return domain.RenderedMessage{}, err
	}
	return domain.RenderedMessage{
		Title: "You Received a Tip! 💸",
		Body: fmt.Sprintf("%s sent you a tip of %s $WAVE",
			sender.Name, rc.rec.Payload.Amount),
	}, nil
}

// renderChallengeReward titles the push with the challenge's catalog name.
// The payload amount wins over the catalog default when present.
func renderChallengeReward(rc renderContext) (domain.RenderedMessage, error) {
	info, ok := rc.challenges.Lookup(rc.rec.Payload.ChallengeID)
	if !ok {
		return domain.RenderedMessage{}, missingEntity("challenge %q not in catalog", rc.rec.Payload.ChallengeID)
	}
	amount := rc.rec.Payload.Amount
	if amount == "" {
		amount = fmt.Sprintf("%d", info.Amount)
	}
	return domain.RenderedMessage{
		Title: info.Title,
		Body:  fmt.Sprintf("You've earned %s $WAVE for completing this challenge!", amount),
	}, nil
}
