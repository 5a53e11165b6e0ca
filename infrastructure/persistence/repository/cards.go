package repository

import (
	"context"
	"errors"
	"fmt"

	"socialcore/application/keys"
	"socialcore/application/ports"
	"socialcore/domain/core/entities"
	pkgerrors "socialcore/pkg/errors"

	"go.uber.org/zap"
)

type cardItem struct {
	tableKeys
	entities.Card
}

func newCardItem(c *entities.Card) cardItem {
	item := cardItem{tableKeys: primary(keys.Card(c.CardID), kindCard), Card: *c}
	item.GSI1PK = keys.CardsView(c.UserID)
	item.GSI1SK = keys.FormatTime(c.UpdatedAt)
	return item
}

// CardRepository stores notification cards, listed per user by last update.
type CardRepository struct {
	store
}

func NewCardRepository(kv ports.KeyValueStore, logger *zap.Logger) *CardRepository {
	return &CardRepository{store{kv: kv, logger: logger}}
}

// UpsertCard creates the card with card.Count, or adds card.Count to an existing card of
// the same user and refreshes its text.
func (r *CardRepository) UpsertCard(ctx context.Context, card *entities.Card) (*entities.Card, error) {
	// A card deleted between the create and the bump is created again on the second pass.
	for attempt := 0; ; attempt++ {
		created, err := r.createCard(ctx, card)
		if err != nil {
			return nil, err
		}
		if created {
			c := *card
			return &c, nil
		}

		bumped, err := r.bumpCard(ctx, card)
		if !errors.Is(err, ports.ErrConditionFailed) {
			return bumped, err
		}
		existing, err := r.GetCard(ctx, card.CardID)
		if err != nil {
			return nil, err
		}
		if existing != nil || attempt > 0 {
			return nil, pkgerrors.NewAlreadyExistsError("card", card.CardID)
		}
	}
}

// bumpCard adds card.Count to the stored card owned by card.UserID.
func (r *CardRepository) bumpCard(ctx context.Context, card *entities.Card) (*entities.Card, error) {
	next := newCardItem(card)
	set := map[string]any{
		"Title":     card.Title,
		"Action":    card.Action,
		"UpdatedAt": card.UpdatedAt,
		attrGSI1SK:  next.GSI1SK,
	}
	if card.SubjectID != "" {
		set["SubjectID"] = card.SubjectID
	}
	upd := ports.Update{Add: map[string]int{"Count": card.Count}, Set: set}
	item, err := r.kv.Update(ctx, keys.Card(card.CardID), upd, ports.And{
		ports.ItemExists(),
		ports.Equal("UserID", card.UserID),
	})
	if errors.Is(err, ports.ErrConditionFailed) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bump card %s: %w", card.CardID, err)
	}
	return decode[entities.Card](item)
}

// createCard reports false without error when the card already exists.
func (r *CardRepository) createCard(ctx context.Context, card *entities.Card) (bool, error) {
	item, err := marshalItem(newCardItem(card))
	if err != nil {
		return false, err
	}
	err = r.kv.Put(ctx, item, ports.ItemNotExists())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ports.ErrConditionFailed):
		return false, nil
	default:
		return false, fmt.Errorf("failed to create card %s: %w", card.CardID, err)
	}
}

func (r *CardRepository) GetCard(ctx context.Context, cardID string) (*entities.Card, error) {
	item, err := r.get(ctx, keys.Card(cardID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Card](item)
}

func (r *CardRepository) DeleteCard(ctx context.Context, cardID string) (*entities.Card, error) {
	item, err := r.remove(ctx, keys.Card(cardID))
	if err != nil {
		return nil, err
	}
	return decode[entities.Card](item)
}

// PageCards lists a user's cards, most recently updated first.
func (r *CardRepository) PageCards(ctx context.Context, userID string, limit int, cursor string) ([]*entities.Card, string, error) {
	return page[entities.Card](ctx, r.store, ports.Query{
		Index:        ports.IndexGSI1,
		PartitionKey: keys.CardsView(userID),
		Descending:   true,
		Limit:        limit,
		Cursor:       cursor,
	})
}
