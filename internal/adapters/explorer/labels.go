package explorer

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/selivandex/whale-monitor/internal/labels"
	"github.com/selivandex/whale-monitor/pkg/models"
)

// LabelSource resolves contract names from the explorer and infers a
// label kind from them. Only Ethereum is covered; other chains return no
// label and fall back to the builtin registry.
type LabelSource struct {
	client *Client
}

// NewLabelSource creates the explorer-backed label source
func NewLabelSource(client *Client) *LabelSource {
	return &LabelSource{client: client}
}

// FetchLabel looks up the verified contract name for the address
func (s *LabelSource) FetchLabel(ctx context.Context, address string, chain models.Chain) (*models.AddressLabel, error) {
	if chain != models.ChainEthereum {
		return nil, nil
	}

	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getsourcecode")
	params.Set("address", address)

	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  []struct {
			ContractName string `json:"ContractName"`
		} `json:"result"`
	}
	if err := s.client.call(ctx, params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "1" {
		return nil, fmt.Errorf("explorer returned error: %s", resp.Message)
	}
	if len(resp.Result) == 0 || resp.Result[0].ContractName == "" {
		// Unverified contract or EOA: nothing to infer from
		return nil, nil
	}

	name := resp.Result[0].ContractName
	kind, confidence := labels.InferKind(name)

	return &models.AddressLabel{
		Address:    address,
		Chain:      chain,
		Kind:       kind,
		EntityName: labels.EntityFromLabel(name),
		Confidence: confidence,
		UpdatedAt:  time.Now().UTC(),
	}, nil
}
