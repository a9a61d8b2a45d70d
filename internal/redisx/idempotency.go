package redisx

import (
	"context"
	"errors"
	"github.com/redis/go-redis/v9"
)

var ErrInFlight = errors.New("request with the same idempotency key is still in progress")

const idemInFlight = "in-flight"

// Idempotency menyimpan hasil checkout per (user, Idempotency-Key).
// Redis hanya jalan pintas; kalau Redis mati checkout tetap jalan.
type Idempotency struct {
	RDB *redis.Client
}

// Begin mengklaim key. Hasil:
//   - ("", nil): klaim berhasil, lanjutkan checkout lalu Complete/Abort
//   - (orderID, nil): key sudah selesai sebelumnya
//   - ErrInFlight: request kembar masih diproses
func (i *Idempotency) Begin(ctx context.Context, userID, key string) (string, error) {
	k := IdemKey(userID, key)
	ok, err := Claim(ctx, i.RDB, k, idemInFlight, TTLIdemLock)
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// lock kedaluwarsa di antara SETNX dan GET
		return i.Begin(ctx, userID, key)
	}
	if err != nil {
		return "", err
	}
	if v == idemInFlight {
		return "", ErrInFlight
	}
	return v, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	return i.RDB.Set(ctx, IdemKey(userID, key), orderID, TTLIdempotency).Err()
}

// Abort melepas klaim supaya client boleh retry dengan key yang sama.
func (i *Idempotency) Abort(ctx context.Context, userID, key string) error {
	return i.RDB.Del(ctx, IdemKey(userID, key)).Err()
}
