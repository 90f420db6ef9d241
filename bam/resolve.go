package bam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// FindNetworkID resolves a network by its CIDR range.
func FindNetworkID(ctx context.Context, c Client, cidr string) (int64, error) {
	return findID(ctx, c, "networks", fmt.Sprintf("range:'%s'", cidr))
}

// FindViewID resolves a DNS view by name.
func FindViewID(ctx context.Context, c Client, name string) (int64, error) {
	return findID(ctx, c, "views", fmt.Sprintf("name:'%s'", name))
}

func findID(ctx context.Context, c Client, collection, filter string) (int64, error) {
	path := collection + "?filter=" + url.QueryEscape(filter)
	resp, err := c.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, err
	}
	if !resp.OK() {
		return 0, fmt.Errorf("list %s, status=%d", collection, resp.Status)
	}

	var list listResponse
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return 0, fmt.Errorf("parse %s response: %w", collection, err)
	}
	if len(list.Data) == 0 {
		return 0, fmt.Errorf("no %s matched filter %s", collection, filter)
	}
	return list.Data[0].ID, nil
}
