package transaction

import (
	"context"

	"github.com/DomeLiquid/federation/core"
	"github.com/pkg/errors"
)

type PollOutcome int

const (
	PollConfirmed PollOutcome = iota + 1
	PollFailed
	PollTimedOut
	PollError
)

func (o PollOutcome) String() string {
	switch o {
	case PollConfirmed:
		return "confirmed"
	case PollFailed:
		return "failed"
	case PollTimedOut:
		return "timed_out"
	case PollError:
		return "error"
	default:
		return "unknown"
	}
}

// PollHandle observes a detached poll. It cannot cancel it.
type PollHandle struct {
	done    chan struct{}
	outcome PollOutcome
}

func (h *PollHandle) Done() <-chan struct{} {
	return h.done
}

// Outcome is only meaningful once Done is closed.
func (h *PollHandle) Outcome() PollOutcome {
	select {
	case <-h.done:
		return h.outcome
	default:
		return 0
	}
}

func (h *PollHandle) Wait() PollOutcome {
	<-h.done
	return h.outcome
}

// PollChainTransactions confirms chainTransactions in order on its own
// goroutine and, when all of them succeeded, pushes fresh inventory state
// for every affected player. It returns immediately.
func (m *Manager) PollChainTransactions(transactionId string, chainTransactions []string, players []core.AffectedPlayer) *PollHandle {
	h := &PollHandle{done: make(chan struct{})}
	queue := append([]string(nil), chainTransactions...)
	affected := append([]core.AffectedPlayer(nil), players...)

	m.polls.Add(1)
	go func() {
		defer m.polls.Done()
		defer close(h.done)
		h.outcome = m.poll(context.Background(), transactionId, queue, affected)
		m.metrics.pollOutcomes.WithLabelValues(h.outcome.String()).Inc()
	}()
	return h
}

// Drain waits for every detached poll to finish or for ctx to end,
// whichever comes first. Polls started after Drain returns are not waited on.
func (m *Manager) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.polls.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "drain polls")
	}
}

func (m *Manager) poll(ctx context.Context, transactionId string, queue []string, players []core.AffectedPlayer) PollOutcome {
	cfg := m.settings.Current()
	attempts := 0

	for len(queue) > 0 {
		hash := queue[0]
		status, err := m.chain.GetTransactionStatus(ctx, hash)
		if err != nil {
			m.log.Warn().Err(err).Str("transaction", transactionId).Str("hash", hash).Msg("query chain transaction")
			status = core.TransactionStatusUnknown
		}
		m.metrics.statusQueries.WithLabelValues(string(status)).Inc()

		switch status {
		case core.TransactionStatusSucceeded:
			queue = queue[1:]
			continue
		case core.TransactionStatusFailed:
			m.log.Error().Str("transaction", transactionId).Str("hash", hash).Msg("chain transaction failed")
			if err := m.MarkFailed(ctx, transactionId); err != nil {
				m.log.Error().Err(err).Str("transaction", transactionId).Msg("mark transaction failed")
				return PollError
			}
			return PollFailed
		}

		attempts++
		if attempts >= cfg.MaxTransactionPollCount {
			m.log.Warn().
				Str("transaction", transactionId).
				Str("hash", hash).
				Int("attempts", attempts).
				Msg("chain transaction still pending, giving up")
			return PollTimedOut
		}
		m.clk.Sleep(cfg.TransactionPollInterval)
	}

	// reads on the chain service lag confirmation
	m.clk.Sleep(cfg.DelayAfterConfirmation)

	if err := m.MarkConfirmed(ctx, transactionId); err != nil {
		m.log.Error().Err(err).Str("transaction", transactionId).Msg("mark transaction confirmed")
		return PollError
	}
	m.log.Info().Str("transaction", transactionId).Int("players", len(players)).Msg("transaction confirmed")

	for _, player := range players {
		state, err := m.states.State(ctx, player.WalletAddress)
		if err != nil {
			m.log.Error().Err(err).Int64("player", player.PlayerId).Msg("build inventory state")
			continue
		}
		if err := m.sink.ReplaceState(ctx, player.PlayerId, state); err != nil {
			m.log.Error().Err(err).Int64("player", player.PlayerId).Msg("replace inventory state")
		}
	}
	return PollConfirmed
}
