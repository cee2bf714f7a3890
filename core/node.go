package core

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"zenbeasts/core/events"
	"zenbeasts/core/journal"
	"zenbeasts/core/state"
	"zenbeasts/core/types"
	"zenbeasts/native/beast"
	"zenbeasts/native/combat"
	"zenbeasts/native/params"
	"zenbeasts/native/treasury"
	"zenbeasts/observability"
	"zenbeasts/observability/metrics"
	"zenbeasts/storage"
)

// Node is the central controller, wiring the state manager, the native
// engines, and the event journal together. Every public operation is one
// synchronous transition: the engines run against an overlay snapshot of
// state, the snapshot commits only when the operation succeeds, and the
// emitted events reach the journal only after the commit. A failed
// operation therefore leaves no trace in state or in the stream.
type Node struct {
	db      storage.Database
	state   *state.Manager
	journal *journal.Store
	logger  *slog.Logger
	catalog *beast.TraitCatalog
	nowFn   func() time.Time
	stateMu sync.Mutex
}

// NewNode creates a node over db. The journal, logger, trait catalog, and
// clock are optional and default to off, slog.Default, the built-in weights,
// and wall time.
func NewNode(db storage.Database) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: nil database")
	}
	return &Node{
		db:     db,
		state:  state.NewManager(db),
		logger: slog.Default(),
		nowFn:  time.Now,
	}, nil
}

// SetJournal wires the append-only event journal. Events emitted by engines
// are appended after each successful commit; a nil journal disables the
// stream.
func (n *Node) SetJournal(store *journal.Store) { n.journal = store }

// Journal exposes the journal for stream consumers (RPC cursor reads, the
// WebSocket feed). Nil when no journal is wired.
func (n *Node) Journal() *journal.Store { return n.journal }

// SetLogger overrides the node logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger
}

// SetTraitCatalog overrides the trait-weight catalog used at mint time.
func (n *Node) SetTraitCatalog(catalog *beast.TraitCatalog) { n.catalog = catalog }

// SetNowFunc overrides the clock handed to every engine, primarily for tests.
func (n *Node) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	n.nowFn = now
}

// engines bundles the per-operation execution environment: every engine
// wired over the same snapshot manager and event collector.
type engines struct {
	state  *state.Manager
	gov    *params.Governor
	ledger *treasury.Ledger
	beasts *beast.Engine
	combat *combat.Engine
}

type eventWithPayload interface {
	Event() *types.Event
}

// eventCollector buffers engine events during an operation so they can be
// published after, and only after, the snapshot commits.
type eventCollector struct {
	events []*types.Event
}

func (c *eventCollector) Emit(evt events.Event) {
	if c == nil || evt == nil {
		return
	}
	payload, ok := evt.(eventWithPayload)
	if !ok {
		return
	}
	event := payload.Event()
	if event == nil {
		return
	}
	c.events = append(c.events, event)
}

func (n *Node) newEngines(manager *state.Manager, emitter events.Emitter) *engines {
	gov := params.NewGovernor()
	gov.SetState(manager)
	gov.SetEmitter(emitter)
	gov.SetNowFunc(n.nowFn)

	ledger := treasury.NewLedger()
	ledger.SetState(manager)
	ledger.SetEmitter(emitter)

	beasts := beast.NewEngine()
	beasts.SetState(manager)
	beasts.SetGovernor(gov)
	beasts.SetLedger(ledger)
	beasts.SetEmitter(emitter)
	beasts.SetNowFunc(n.nowFn)
	beasts.SetCatalog(n.catalog)

	arena := combat.NewEngine()
	arena.SetState(manager)
	arena.SetGovernor(gov)
	arena.SetLedger(ledger)
	arena.SetEmitter(emitter)
	arena.SetNowFunc(n.nowFn)

	return &engines{state: manager, gov: gov, ledger: ledger, beasts: beasts, combat: arena}
}

// withSnapshot executes one operation against an overlay snapshot of state,
// committing the overlay and publishing the collected events only on success.
// Read-only operations take the same path: a config read can activate a due
// pending update, and that activation must persist and journal like any
// other transition.
func (n *Node) withSnapshot(op string, fn func(env *engines) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	start := time.Now()
	snapshot := n.state.Snapshot()
	collector := &eventCollector{}
	env := n.newEngines(snapshot, collector)

	err := fn(env)
	if err == nil {
		err = snapshot.Commit()
	}
	observability.State().Observe(op, time.Since(start), err)
	if err != nil {
		n.logger.Debug("operation rejected", "op", op, "err", err)
		return err
	}
	n.publish(collector.events)
	return nil
}

// publish appends committed events to the journal. State has already
// committed at this point, so a journal failure is logged and swallowed
// rather than unwinding the operation.
func (n *Node) publish(committed []*types.Event) {
	if n.journal == nil || len(committed) == 0 {
		return
	}
	for _, evt := range committed {
		entry, err := n.journal.Append(evt.Type, evt.Attributes)
		if err != nil {
			n.logger.Error("journal append failed", "type", evt.Type, "err", err)
			continue
		}
		observability.State().SetJournalHead(entry.Sequence)
		observability.Events().Record(evt.Type)
	}
}

// InitializeEconomy seeds the economy configuration exactly once.
func (n *Node) InitializeEconomy(cfg *params.Config) error {
	return n.withSnapshot("initialize", func(env *engines) error {
		return env.gov.Initialize(cfg)
	})
}

// ApplyGenesis initializes the economy and seeds the initial token supply and
// balances in one transition. The supply must cover every seeded balance.
func (n *Node) ApplyGenesis(cfg *params.Config, supply *big.Int, balances map[[20]byte]*big.Int) error {
	return n.withSnapshot("genesis", func(env *engines) error {
		if err := env.gov.Initialize(cfg); err != nil {
			return err
		}
		if supply == nil {
			supply = big.NewInt(0)
		}
		total := new(big.Int)
		for _, amount := range balances {
			if amount == nil || amount.Sign() < 0 {
				return fmt.Errorf("core: genesis balance must be non-negative")
			}
			total.Add(total, amount)
		}
		if supply.Cmp(total) < 0 {
			return fmt.Errorf("core: genesis balances %s exceed initial supply %s", total, supply)
		}
		if err := env.state.SetTokenSupply(supply); err != nil {
			return err
		}
		for addr, amount := range balances {
			account, err := env.state.GetAccount(addr)
			if err != nil {
				return err
			}
			account.BalanceZen = new(big.Int).Set(amount)
			if err := env.state.PutAccount(addr, account); err != nil {
				return err
			}
		}
		return nil
	})
}

// Initialized reports whether the economy configuration exists.
func (n *Node) Initialized() (bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	_, ok, err := n.state.EconomyConfig()
	return ok, err
}

// Mint creates a new generation-zero beast for caller.
func (n *Node) Mint(caller [20]byte, name, uri string, seed uint64) (*types.BeastAccount, error) {
	var minted *types.BeastAccount
	err := n.withSnapshot("mint", func(env *engines) error {
		b, err := env.beasts.Mint(caller, name, uri, seed)
		if err != nil {
			return err
		}
		minted = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// PerformActivity runs one cooldown-gated activity, banking accrued rewards.
func (n *Node) PerformActivity(caller [20]byte, id [32]byte, activityType uint8) (*types.BeastAccount, uint64, error) {
	var (
		updated *types.BeastAccount
		earned  uint64
	)
	err := n.withSnapshot("perform_activity", func(env *engines) error {
		b, amount, err := env.beasts.PerformActivity(caller, id, activityType)
		if err != nil {
			return err
		}
		updated, earned = b, amount
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return updated, earned, nil
}

// ClaimRewards pays out everything the beast has earned.
func (n *Node) ClaimRewards(caller [20]byte, id [32]byte) (uint64, error) {
	var paid uint64
	err := n.withSnapshot("claim_rewards", func(env *engines) error {
		amount, err := env.beasts.ClaimRewards(caller, id)
		if err != nil {
			return err
		}
		paid = amount
		return nil
	})
	if err != nil {
		return 0, err
	}
	return paid, nil
}

// UpgradeTrait raises one core trait by a single point.
func (n *Node) UpgradeTrait(caller [20]byte, id [32]byte, traitIndex uint8, payment uint64) (*types.BeastAccount, uint64, error) {
	var (
		updated *types.BeastAccount
		cost    uint64
	)
	err := n.withSnapshot("upgrade_trait", func(env *engines) error {
		b, paid, err := env.beasts.UpgradeTrait(caller, id, traitIndex, payment)
		if err != nil {
			return err
		}
		updated, cost = b, paid
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return updated, cost, nil
}

// Breed creates an offspring from two beasts the caller owns.
func (n *Node) Breed(caller [20]byte, parentA, parentB [32]byte, name, uri string, seed, payment uint64) (*types.BeastAccount, error) {
	var child *types.BeastAccount
	err := n.withSnapshot("breed", func(env *engines) error {
		b, err := env.beasts.Breed(caller, parentA, parentB, name, uri, seed, payment)
		if err != nil {
			return err
		}
		child = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}

// UpdateOwner hands a beast to a new owner.
func (n *Node) UpdateOwner(caller [20]byte, id [32]byte, newOwner [20]byte) error {
	return n.withSnapshot("update_owner", func(env *engines) error {
		return env.beasts.UpdateOwner(caller, id, newOwner)
	})
}

// UpdateConfig applies an economy parameter delta on behalf of caller.
func (n *Node) UpdateConfig(caller [20]byte, changes params.Changes, delay int64) error {
	return n.withSnapshot("update_config", func(env *engines) error {
		return env.gov.Update(caller, changes, delay)
	})
}

// TransferAuthority hands governance to a new address.
func (n *Node) TransferAuthority(caller, next [20]byte) error {
	return n.withSnapshot("transfer_authority", func(env *engines) error {
		return env.gov.TransferAuthority(caller, next)
	})
}

// RepairAccount lets the authority overwrite a drifted rarity score.
func (n *Node) RepairAccount(caller [20]byte, id [32]byte, corrected uint64) error {
	return n.withSnapshot("repair_account", func(env *engines) error {
		return env.beasts.Repair(caller, id, corrected)
	})
}

// UnlockAbility binds an ability to one of the four core trait slots.
func (n *Node) UnlockAbility(caller [20]byte, id [32]byte, traitIndex, abilityID uint8, payment uint64) (*types.BeastAccount, uint64, error) {
	var (
		updated *types.BeastAccount
		cost    uint64
	)
	err := n.withSnapshot("unlock_ability", func(env *engines) error {
		b, paid, err := env.beasts.UnlockAbility(caller, id, traitIndex, abilityID, payment)
		if err != nil {
			return err
		}
		updated, cost = b, paid
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return updated, cost, nil
}

// UpgradeAbility raises an unlocked ability one level.
func (n *Node) UpgradeAbility(caller [20]byte, id [32]byte, traitIndex uint8, payment uint64) (*types.BeastAccount, uint64, error) {
	var (
		updated *types.BeastAccount
		cost    uint64
	)
	err := n.withSnapshot("upgrade_ability", func(env *engines) error {
		b, paid, err := env.beasts.UpgradeAbility(caller, id, traitIndex, payment)
		if err != nil {
			return err
		}
		updated, cost = b, paid
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return updated, cost, nil
}

// InitiateCombat opens a wagered session between two beasts.
func (n *Node) InitiateCombat(caller [20]byte, sessionID uint64, challengerID, opponentID [32]byte, wager uint64) (*types.CombatSession, error) {
	var session *types.CombatSession
	err := n.withSnapshot("combat_initiate", func(env *engines) error {
		s, err := env.combat.Initiate(caller, sessionID, challengerID, opponentID, wager)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Combat().ObserveSessionStarted(session.WagerAmount)
	return session, nil
}

// ExecuteCombatTurn plays one ability in an active session.
func (n *Node) ExecuteCombatTurn(caller [20]byte, sessionID uint64, abilityIndex uint8) (*types.CombatSession, uint16, error) {
	var (
		session *types.CombatSession
		effect  uint16
	)
	err := n.withSnapshot("combat_turn", func(env *engines) error {
		s, applied, err := env.combat.ExecuteTurn(caller, sessionID, abilityIndex)
		if err != nil {
			return err
		}
		session, effect = s, applied
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return session, effect, nil
}

// ResolveCombat settles a finished session: payout, burn, tallies, cleanup.
func (n *Node) ResolveCombat(caller [20]byte, sessionID uint64) (*types.CombatSession, error) {
	var session *types.CombatSession
	err := n.withSnapshot("combat_resolve", func(env *engines) error {
		s, err := env.combat.Resolve(caller, sessionID)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Combat().ObserveSessionResolved(session.Status.String(), session.EscrowedAmount)
	return session, nil
}

// GetBeast returns a copy of the beast record.
func (n *Node) GetBeast(id [32]byte) (*types.BeastAccount, error) {
	var found *types.BeastAccount
	err := n.withSnapshot("get_beast", func(env *engines) error {
		b, err := env.beasts.Get(id)
		if err != nil {
			return err
		}
		found = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// GetConfig returns the economy configuration governing operations right now,
// applying a due pending update in the process.
func (n *Node) GetConfig() (*params.Config, error) {
	var cfg *params.Config
	err := n.withSnapshot("get_config", func(env *engines) error {
		effective, err := env.gov.Effective()
		if err != nil {
			return err
		}
		cfg = effective
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetAccount returns the token account for addr; unseen addresses read as
// zero-balance accounts.
func (n *Node) GetAccount(addr [20]byte) (*types.Account, error) {
	var account *types.Account
	err := n.withSnapshot("get_account", func(env *engines) error {
		acc, err := env.state.GetAccount(addr)
		if err != nil {
			return err
		}
		account = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// TokenSupply returns the circulating reward-token supply.
func (n *Node) TokenSupply() (*big.Int, error) {
	var supply *big.Int
	err := n.withSnapshot("token_supply", func(env *engines) error {
		s, err := env.state.TokenSupply()
		if err != nil {
			return err
		}
		supply = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return supply, nil
}

// CombatSession returns a copy of an open session.
func (n *Node) CombatSession(sessionID uint64) (*types.CombatSession, error) {
	var session *types.CombatSession
	err := n.withSnapshot("combat_session", func(env *engines) error {
		s, err := env.combat.Session(sessionID)
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ClaimableRewards quotes what a claim would pay out right now.
func (n *Node) ClaimableRewards(id [32]byte) (uint64, error) {
	var amount uint64
	err := n.withSnapshot("claimable_rewards", func(env *engines) error {
		a, err := env.beasts.ClaimableRewards(id)
		if err != nil {
			return err
		}
		amount = a
		return nil
	})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// PreviewUpgrade quotes the cost of upgrading one core trait.
func (n *Node) PreviewUpgrade(id [32]byte, traitIndex uint8) (uint64, error) {
	var cost uint64
	err := n.withSnapshot("preview_upgrade", func(env *engines) error {
		c, err := env.beasts.PreviewUpgrade(id, traitIndex)
		if err != nil {
			return err
		}
		cost = c
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cost, nil
}

// PreviewBreeding quotes the cost of breeding two beasts.
func (n *Node) PreviewBreeding(parentA, parentB [32]byte) (uint64, error) {
	var cost uint64
	err := n.withSnapshot("preview_breeding", func(env *engines) error {
		c, err := env.beasts.PreviewBreeding(parentA, parentB)
		if err != nil {
			return err
		}
		cost = c
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cost, nil
}
