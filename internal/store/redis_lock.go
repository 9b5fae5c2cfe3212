package store

import (
	"context"
	"fmt"
	"time"

	"velora_back_end/internal/database"
)

// TTL du verrou d'idempotence : Stripe redélivre pendant ~3 jours,
// on couvre large.
const fulfillmentLockTTL = 72 * time.Hour

// RedisLocks : verrou SetNX par référence de paiement. Une livraison
// dupliquée qui arrive pendant (ou après) le traitement de la première
// échoue à l'acquisition et est traitée en no-op.
type RedisLocks struct{}

func NewRedisLocks() *RedisLocks {
	return &RedisLocks{}
}

func lockKey(paymentRef string) string { return "fulfill:" + paymentRef }

func (r *RedisLocks) Acquire(ctx context.Context, paymentRef string) (bool, error) {
	ok, err := database.Redis.SetNX(ctx, lockKey(paymentRef), 1, fulfillmentLockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("acquisition verrou %s: %w", paymentRef, err)
	}
	return ok, nil
}

func (r *RedisLocks) Release(ctx context.Context, paymentRef string) error {
	if err := database.Redis.Del(ctx, lockKey(paymentRef)).Err(); err != nil {
		return fmt.Errorf("libération verrou %s: %w", paymentRef, err)
	}
	return nil
}
