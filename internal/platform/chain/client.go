package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/valuation"
)

var erc20ABI abi.ABI

func init() {
	var err error
	erc20ABI, err = abi.JSON(strings.NewReader(`[{
		"name":"balanceOf","type":"function",
		"inputs":[{"name":"account","type":"address"}],
		"outputs":[{"name":"","type":"uint256"}]
	}]`))
	if err != nil {
		panic("erc20 abi parse: " + err.Error())
	}
}

// Token is one entry of the wallet balance allow-list. A token with an
// empty contract address is the chain's native asset.
type Token struct {
	Symbol   string
	Contract string
	Decimals int
}

// Config configures the chain client.
type Config struct {
	RPCURL string
	// Tokens is the fixed allow-list the wallet view covers. Anything the
	// wallet holds outside it is invisible here; the reconciler reports
	// that as partial coverage.
	Tokens []Token
}

// Client observes on-chain balances of external wallets over JSON-RPC. It
// is strictly read-only: no keys, no transactions, only eth_getBalance and
// eth_call against the fixed token allow-list.
type Client struct {
	eth    *ethclient.Client
	tokens []Token
	prices domain.PriceCache
	logger *slog.Logger
}

// NewClient dials the RPC endpoint and returns a chain client. EUR values
// on the returned snapshots come from the shared price cache.
func NewClient(ctx context.Context, cfg Config, prices domain.PriceCache, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}
	return &Client{
		eth:    eth,
		tokens: cfg.Tokens,
		prices: prices,
		logger: logger.With(slog.String("component", "chain_client")),
	}, nil
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// FetchBalances returns the wallet balance snapshot for one address: one
// entry per allow-listed token, each valued in EUR from the latest cached
// quotes. A token with no usable quote keeps its amount and values at zero
// rather than failing the whole snapshot.
func (c *Client) FetchBalances(ctx context.Context, address string) (domain.WalletBalanceSnapshot, error) {
	if !common.IsHexAddress(address) {
		return domain.WalletBalanceSnapshot{}, domain.NewValidationError("address", "not a hex address: %q", address)
	}
	owner := common.HexToAddress(address)

	symbols := make([]string, 0, len(c.tokens))
	for _, tok := range c.tokens {
		symbols = append(symbols, tok.Symbol)
	}
	quotes, err := c.prices.GetAll(ctx, symbols)
	if err != nil {
		c.logger.Warn("price cache unavailable, snapshot will carry zero valuations",
			slog.String("error", err.Error()),
		)
		quotes = domain.PriceMap{}
	}

	snap := domain.WalletBalanceSnapshot{
		Address:   owner.Hex(),
		FetchedAt: time.Now().UTC(),
	}
	for _, tok := range c.tokens {
		raw, err := c.rawBalance(ctx, owner, tok)
		if err != nil {
			return domain.WalletBalanceSnapshot{}, fmt.Errorf("chain: balance of %s for %s: %w", tok.Symbol, owner.Hex(), err)
		}
		amount := scaleDown(raw, tok.Decimals)

		var valueEur float64
		if q, ok := valuation.Resolve(tok.Symbol, quotes); ok {
			valueEur = amount * q.Price
		} else if amount > 0 {
			c.logger.Warn("no quote for wallet token, valuing at zero",
				slog.String("symbol", tok.Symbol),
			)
		}

		snap.Tokens = append(snap.Tokens, domain.TokenBalance{
			Symbol:   tok.Symbol,
			Amount:   amount,
			ValueEur: valueEur,
		})
		snap.TotalValueEur += valueEur
	}
	return snap, nil
}

// rawBalance reads one token balance: BalanceAt for the native asset,
// an eth_call to balanceOf for ERC-20 contracts.
func (c *Client) rawBalance(ctx context.Context, owner common.Address, tok Token) (*big.Int, error) {
	if tok.Contract == "" {
		return c.eth.BalanceAt(ctx, owner, nil)
	}
	if !common.IsHexAddress(tok.Contract) {
		return nil, domain.NewValidationError("contract", "%s: not a hex address: %q", tok.Symbol, tok.Contract)
	}
	contract := common.HexToAddress(tok.Contract)

	callData, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	result, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	vals, err := erc20ABI.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	return balanceFromUnpacked(vals)
}

// balanceFromUnpacked extracts the uint256 balance from an ABI-unpacked
// balanceOf result.
func balanceFromUnpacked(vals []any) (*big.Int, error) {
	if len(vals) == 0 {
		return nil, fmt.Errorf("unpack balanceOf: empty result")
	}
	balance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack balanceOf: unexpected type %T", vals[0])
	}
	return balance, nil
}

// scaleDown converts a raw integer token amount to a float using the
// token's decimals. Precision loss is acceptable here; these snapshots feed
// diagnostics, not accounting.
func scaleDown(raw *big.Int, decimals int) float64 {
	if raw == nil || raw.Sign() == 0 {
		return 0
	}
	f := new(big.Float).SetInt(raw)
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	out, _ := new(big.Float).Quo(f, scale).Float64()
	return out
}
