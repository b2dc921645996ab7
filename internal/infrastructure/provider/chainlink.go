package provider

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"fxcore-service/internal/application"
	"fxcore-service/internal/domain"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

var _ application.RateProvider = (*Chainlink)(nil)

// Chainlink price feeds on Base mainnet.
var baseFeeds = map[domain.Currency]common.Address{
	domain.ETH:  common.HexToAddress("0x71041dddad3595F9CEd3DcCFBe3D1F4b0a16Bb70"),
	domain.BTC:  common.HexToAddress("0x64c911996D3c6aC71f9b455B1E8E7266BcbD848F"),
	domain.USDC: common.HexToAddress("0x7e860098F58bBFC8648a4311b374B1D669a2bc6B"),
}

// maxFeedAge rejects feed rounds older than this. Base feeds heartbeat
// well under an hour.
const maxFeedAge = 2 * time.Hour

const aggregatorABI = `[
  {"inputs":[],"name":"latestRoundData","outputs":[
    {"internalType":"uint80","name":"roundId","type":"uint80"},
    {"internalType":"int256","name":"answer","type":"int256"},
    {"internalType":"uint256","name":"startedAt","type":"uint256"},
    {"internalType":"uint256","name":"updatedAt","type":"uint256"},
    {"internalType":"uint80","name":"answeredInRound","type":"uint80"}
  ],"stateMutability":"view","type":"function"},
  {"inputs":[],"name":"decimals","outputs":[
    {"internalType":"uint8","name":"","type":"uint8"}
  ],"stateMutability":"view","type":"function"}
]`

// ethCaller is the slice of ethclient.Client the provider needs.
type ethCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Chainlink is the secondary rate source, reading on-chain USD price
// feeds. The NGN leg is bridged through the shared fiat source, same
// as the other providers.
type Chainlink struct {
	eth   ethCaller
	feeds map[domain.Currency]common.Address
	fiat  *fiatSource
	abi   abi.ABI
	now   func() time.Time
}

// NewChainlink dials the RPC endpoint. fiatURL and fallbackNGN
// configure the USD to NGN bridge.
func NewChainlink(rpcURL, fiatURL string, fallbackNGN float64, log *zap.Logger) (*Chainlink, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chainlink: dial %s: %w", rpcURL, err)
	}
	return NewChainlinkWithCaller(client, newFiatSource(nil, fiatURL, fallbackNGN, log))
}

// NewChainlinkWithCaller wires an explicit contract caller; tests use
// this with a stub.
func NewChainlinkWithCaller(eth ethCaller, fiat *fiatSource) (*Chainlink, error) {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("chainlink: parse abi: %w", err)
	}
	return &Chainlink{
		eth:   eth,
		feeds: baseFeeds,
		fiat:  fiat,
		abi:   parsed,
		now:   time.Now,
	}, nil
}

func (c *Chainlink) Name() string { return "chainlink" }

func (c *Chainlink) Quote(ctx context.Context, base, quote domain.Currency) (float64, error) {
	bu, err := c.usdValue(ctx, base)
	if err != nil {
		return 0, err
	}
	qu, err := c.usdValue(ctx, quote)
	if err != nil {
		return 0, err
	}
	if qu <= 0 {
		return 0, fmt.Errorf("chainlink: zero usd value for %s", quote)
	}
	return bu / qu, nil
}

func (c *Chainlink) usdValue(ctx context.Context, cur domain.Currency) (float64, error) {
	switch {
	case cur == domain.USD:
		return 1, nil
	case cur == domain.NGN:
		return 1 / c.fiat.usdToNGN(ctx), nil
	case cur == domain.USDT:
		// No USDT feed on Base; pegged like the other providers.
		return 1, nil
	default:
		feed, ok := c.feeds[cur]
		if !ok {
			return 0, fmt.Errorf("%w: no feed for %s", domain.ErrUnsupportedPair, cur)
		}
		return c.feedPrice(ctx, feed)
	}
}

// feedPrice reads latestRoundData and scales the answer by the feed's
// decimals. Rounds that are incomplete, carried over, or too old are
// rejected rather than priced.
func (c *Chainlink) feedPrice(ctx context.Context, feed common.Address) (float64, error) {
	out, err := c.call(ctx, feed, "latestRoundData")
	if err != nil {
		return 0, err
	}
	vals, err := c.abi.Unpack("latestRoundData", out)
	if err != nil {
		return 0, fmt.Errorf("chainlink: unpack latestRoundData: %w", err)
	}
	roundID := vals[0].(*big.Int)
	answer := vals[1].(*big.Int)
	updatedAt := vals[3].(*big.Int)
	answeredInRound := vals[4].(*big.Int)

	if answer.Sign() <= 0 {
		return 0, fmt.Errorf("chainlink: feed %s: %w", feed.Hex(), domain.ErrInvalidRate)
	}
	if answeredInRound.Cmp(roundID) < 0 {
		return 0, fmt.Errorf("chainlink: feed %s: answer carried over from round %s", feed.Hex(), answeredInRound)
	}
	if age := c.now().Sub(time.Unix(updatedAt.Int64(), 0)); age > maxFeedAge {
		return 0, fmt.Errorf("chainlink: feed %s: round is %s old", feed.Hex(), age.Truncate(time.Second))
	}

	out, err = c.call(ctx, feed, "decimals")
	if err != nil {
		return 0, err
	}
	vals, err = c.abi.Unpack("decimals", out)
	if err != nil {
		return 0, fmt.Errorf("chainlink: unpack decimals: %w", err)
	}
	decimals := vals[0].(uint8)

	price, _ := new(big.Float).Quo(
		new(big.Float).SetInt(answer),
		new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)),
	).Float64()
	return price, nil
}

func (c *Chainlink) call(ctx context.Context, feed common.Address, method string) ([]byte, error) {
	data, err := c.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("chainlink: pack %s: %w", method, err)
	}
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chainlink: call %s on %s: %w", method, feed.Hex(), err)
	}
	return out, nil
}
