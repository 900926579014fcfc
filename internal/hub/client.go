package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/HerbHall/hubgate/internal/metrics"
)

// FetchAccessories performs one authenticated read of the hub's full
// accessory snapshot. No retry; callers may safely retry reads themselves.
func (b *Bridge) FetchAccessories(ctx context.Context) ([]Accessory, error) {
	cred, err := b.Credential(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/api/accessories", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build accessories request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)

	resp, err := b.client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("fetch_accessories", metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("hub accessories call: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues("fetch_accessories", metrics.OutcomeError).Inc()
		return nil, &UpstreamError{Operation: "read accessories", Status: resp.StatusCode, Body: string(body)}
	}
	metrics.UpstreamRequests.WithLabelValues("fetch_accessories", metrics.OutcomeOK).Inc()

	var accessories []Accessory
	if err := json.Unmarshal(body, &accessories); err != nil {
		return nil, fmt.Errorf("decode accessories response: %w", err)
	}
	return accessories, nil
}

// WriteCharacteristic performs one authenticated single-characteristic
// write. Writes are deliberately never retried: a duplicate write is a
// duplicate physical side effect.
func (b *Bridge) WriteCharacteristic(ctx context.Context, deviceID, characteristicType string, value any) error {
	cred, err := b.Credential(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"characteristicType": characteristicType,
		"value":              value,
	})
	if err != nil {
		return fmt.Errorf("encode characteristic write: %w", err)
	}

	endpoint := b.baseURL + "/api/accessories/" + url.PathEscape(deviceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build characteristic write request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("write_characteristic", metrics.OutcomeError).Inc()
		return fmt.Errorf("hub characteristic write: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.UpstreamRequests.WithLabelValues("write_characteristic", metrics.OutcomeError).Inc()
		return &UpstreamError{Operation: "write characteristic", Status: resp.StatusCode, Body: string(body)}
	}
	metrics.UpstreamRequests.WithLabelValues("write_characteristic", metrics.OutcomeOK).Inc()

	return nil
}
