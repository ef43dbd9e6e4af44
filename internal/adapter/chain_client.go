package adapter

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/RealToken-Community/gainorloss/internal/errors"
	"github.com/RealToken-Community/gainorloss/internal/logging"
)

// balanceOfSelector is the 4-byte selector of balanceOf(address).
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// ChainClient reads present-moment token balances over RPC. It is the only
// on-chain data source: everything historical comes from the subgraph.
type ChainClient struct {
	client *ethclient.Client
	logger *logging.Logger
}

// NewChainClient dials the RPC endpoint. The client is constructed once at
// startup and injected into services; there is no lazily initialized
// singleton.
func NewChainClient(rpcURL string, logger *logging.Logger) (*ChainClient, error) {
	if logger == nil {
		logger = logging.Default()
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial RPC endpoint: %w", err)
	}
	return &ChainClient{client: client, logger: logger}, nil
}

// Close releases the underlying RPC connection.
func (c *ChainClient) Close() {
	c.client.Close()
}

// TokenBalance calls balanceOf(user) on the token contract at the latest
// block. For aTokens and debt tokens this returns the live, interest-bearing
// balance used as the extrapolation anchor.
func (c *ChainClient) TokenBalance(ctx context.Context, tokenAddress, userAddress string) (*big.Int, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, errors.NewInvalidAddressError(tokenAddress)
	}
	if !common.IsHexAddress(userAddress) {
		return nil, errors.NewInvalidAddressError(userAddress)
	}

	token := common.HexToAddress(tokenAddress)
	user := common.HexToAddress(userAddress)

	calldata := make([]byte, 0, 36)
	calldata = append(calldata, balanceOfSelector...)
	calldata = append(calldata, common.LeftPadBytes(user.Bytes(), 32)...)

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &token,
		Data: calldata,
	}, nil)
	if err != nil {
		return nil, errors.NewProviderError("rpc", err)
	}
	if len(result) < 32 {
		return nil, errors.NewProviderError("rpc",
			fmt.Errorf("balanceOf returned %d bytes, want 32", len(result)))
	}

	return new(big.Int).SetBytes(result[:32]), nil
}
