// Package musedex embeds the musedex discovery engine: federated search
// across accounts, tracks, performers and collections, and the trending
// albums list. The catalog lives in Redis (with the search module),
// PostgreSQL or process memory.
//
//	client, _ := musedex.New(ctx, musedex.WithRedis("localhost:6379", ""))
//	defer client.Close()
//
//	page, _ := client.Search(ctx, "muse", musedex.InKind(musedex.KindTrack), musedex.Page(2))
//	for _, h := range page.Hits {
//	    fmt.Println(h.Kind, h.ID, h.Fields["title"])
//	}
//
//	albums, _ := client.TopPicks(ctx)
package musedex
