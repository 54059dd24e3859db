// Package pixdex provides an embedded Go client for the pixdex semantic
// image search index backed by Redis with the search module.
//
// The client connects straight to the vector index and an OpenAI-compatible
// CLIP embedding server, skipping the HTTP API:
//
//	client, _ := pixdex.New(ctx,
//	    pixdex.WithRedis("localhost:6379", ""),
//	    pixdex.WithEmbeddingServer("http://localhost:7997", ""),
//	)
//	defer client.Close()
//
//	matches, _ := client.SearchText(ctx, "sunset over mountains", 10)
//	matches, _ = client.SearchImage(ctx, pngData, 10)
//
// Authentication is a concern of the HTTP API only; the embedded client
// talks to the index directly and trusts its caller.
package pixdex
