package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"velora_back_end/internal/database"
	"velora_back_end/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// Même rétention que l'ancien panier JSON : 30 jours
	cartTTL = 30 * 24 * time.Hour

	// Essais de la transaction optimiste avant d'abandonner
	cartUpdateRetries = 10
)

var ErrCartContention = errors.New("panier trop disputé, réessayez")

// RedisCarts : lignes de panier en JSON sous cart:<cartID>, identifiant de
// panier stable sous cartid:<userID>. Les mutations passent par WATCH/MULTI,
// donc sérialisées par panier : deux onglets qui ajoutent en même temps ne
// se perdent jamais d'écriture, et un drain est un échange atomique.
type RedisCarts struct{}

func NewRedisCarts() *RedisCarts {
	return &RedisCarts{}
}

func cartKey(cartID string) string   { return "cart:" + cartID }
func cartIDKey(userID string) string { return "cartid:" + userID }

// CartID renvoie l'identifiant du panier de l'utilisateur, créé au premier
// appel (SETNX : une seule création même sous appels concurrents).
func (r *RedisCarts) CartID(ctx context.Context, userID string) (string, error) {
	key := cartIDKey(userID)

	id, err := database.Redis.Get(ctx, key).Result()
	if err == nil && id != "" {
		return id, nil
	}
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("lecture cartid de %s: %w", userID, err)
	}

	candidate := uuid.NewString()
	created, err := database.Redis.SetNX(ctx, key, candidate, 0).Result()
	if err != nil {
		return "", fmt.Errorf("création cartid de %s: %w", userID, err)
	}
	if created {
		return candidate, nil
	}

	// Un appel concurrent a créé le panier juste avant nous
	id, err = database.Redis.Get(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("relecture cartid de %s: %w", userID, err)
	}
	return id, nil
}

// Lines lit les lignes courantes du panier.
func (r *RedisCarts) Lines(ctx context.Context, cartID string) ([]models.CartLine, error) {
	data, err := database.Redis.Get(ctx, cartKey(cartID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lecture panier %s: %w", cartID, err)
	}

	var lines []models.CartLine
	if err := json.Unmarshal([]byte(data), &lines); err != nil {
		return nil, fmt.Errorf("décodage panier %s: %w", cartID, err)
	}
	return lines, nil
}

// Update applique fn sur les lignes courantes dans une transaction optimiste
// (WATCH). Si une mutation concurrente touche le panier entre la lecture et
// l'écriture, la transaction est rejouée.
func (r *RedisCarts) Update(ctx context.Context, cartID string, fn func([]models.CartLine) ([]models.CartLine, error)) ([]models.CartLine, error) {
	key := cartKey(cartID)
	var result []models.CartLine

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		var lines []models.CartLine
		if data != "" {
			if err := json.Unmarshal([]byte(data), &lines); err != nil {
				return fmt.Errorf("décodage panier %s: %w", cartID, err)
			}
		}

		updated, err := fn(lines)
		if err != nil {
			return err
		}
		result = updated

		payload, err := json.Marshal(updated)
		if err != nil {
			return fmt.Errorf("encodage panier %s: %w", cartID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, cartTTL)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < cartUpdateRetries; attempt++ {
		err := database.Redis.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue // écriture concurrente, on rejoue
		}
		return nil, err
	}

	return nil, ErrCartContention
}
