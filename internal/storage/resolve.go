package storage

import (
	"context"

	"github.com/hyperjump/vecscan/internal/models"
)

// ResolveText fills each hit's Text from store. Hashes without a stored chunk are
// counted in resp.MissingText and left without text.
func ResolveText(ctx context.Context, store ChunkStore, resp *models.SearchResponse) error {
	if len(resp.Results) == 0 {
		return nil
	}
	chunks, err := store.GetChunksByHashes(ctx, resp.Hashes())
	if err != nil {
		return err
	}
	resp.MissingText = 0
	for _, hit := range resp.Results {
		if c, ok := chunks[hit.Hash]; ok {
			hit.Text = c.Text
		} else {
			resp.MissingText++
		}
	}
	return nil
}
