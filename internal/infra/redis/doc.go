// Package redis provides the Redis connection shared by the queue broker and the
// registry of declared webhook queues.
//
// The queues themselves live in Redis through asynq. The registry records every queue
// name that was declared so that a restarted process can attach a consumer to each one
// before new vendors are onboarded:
//
//	client, err := redis.New(&cfg.Redis, log)
//	if err != nil {
//		return err
//	}
//	registry := redis.NewQueueRegistry(client.Client(), log)
//	names, err := registry.List(ctx)
package redis
