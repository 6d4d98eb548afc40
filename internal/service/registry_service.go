package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/registry"
)

// RegistryService manages the revenue-share token registry: the bounded mint
// and the holder view the fee engine distributes over.
type RegistryService struct {
	registry *registry.Registry
	emitter  *Emitter
	logger   *slog.Logger
}

// NewRegistryService creates a RegistryService.
func NewRegistryService(reg *registry.Registry, emitter *Emitter, logger *slog.Logger) *RegistryService {
	return &RegistryService{
		registry: reg,
		emitter:  emitter,
		logger:   logger,
	}
}

// Mint issues count sequential tokens to the given address.
func (s *RegistryService) Mint(ctx context.Context, to common.Address, count uint64) error {
	if err := s.registry.Mint(to, count); err != nil {
		return fmt.Errorf("registry_service: mint %d to %s: %w", count, to.Hex(), err)
	}

	minted := s.registry.TotalMinted()
	s.emitter.Emit(ctx, domain.ChannelRegistry, domain.EventTokensMinted,
		domain.TokensMintedEvent{To: to, Count: count, Minted: minted},
		map[string]any{
			"to":     to.Hex(),
			"count":  count,
			"minted": minted,
		},
	)

	// Minting the last token finalizes the supply implicitly.
	if s.registry.Finalized() {
		s.emitter.Emit(ctx, domain.ChannelRegistry, domain.EventMintFinalized,
			nil,
			map[string]any{"minted": minted},
		)
	}

	s.logger.InfoContext(ctx, "registry_service: tokens minted",
		slog.String("to", to.Hex()),
		slog.Uint64("count", count),
		slog.Uint64("total_minted", minted),
	)
	return nil
}

// Finalize permanently closes the mint.
func (s *RegistryService) Finalize(ctx context.Context) error {
	if err := s.registry.Finalize(); err != nil {
		return fmt.Errorf("registry_service: finalize: %w", err)
	}

	s.emitter.Emit(ctx, domain.ChannelRegistry, domain.EventMintFinalized,
		nil,
		map[string]any{"minted": s.registry.TotalMinted()},
	)

	s.logger.InfoContext(ctx, "registry_service: mint finalized",
		slog.Uint64("total_minted", s.registry.TotalMinted()),
	)
	return nil
}

// Supply reports the minted count, fixed maximum, and finalization state.
func (s *RegistryService) Supply(ctx context.Context) (minted, max uint64, finalized bool) {
	return s.registry.TotalMinted(), s.registry.MaxSupply(), s.registry.Finalized()
}

// BalanceOf returns the token count held by addr.
func (s *RegistryService) BalanceOf(ctx context.Context, addr common.Address) uint64 {
	return s.registry.BalanceOf(addr)
}

// OwnerOf returns the holder of a token ID, or the zero address if the token
// has not been minted.
func (s *RegistryService) OwnerOf(ctx context.Context, tokenID uint64) common.Address {
	return s.registry.OwnerOf(tokenID)
}

// Holders returns every holder with a nonzero balance in first-mint order.
func (s *RegistryService) Holders(ctx context.Context) []domain.TokenHolder {
	return s.registry.Holders()
}
