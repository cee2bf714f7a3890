package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"zenbeasts/core/types"
	"zenbeasts/native/params"
	"zenbeasts/storage"
)

// Manager reads and writes every record the engines touch: beast accounts,
// the metadata URI index, token accounts, the circulating supply, the
// governed economy config, and combat sessions. Records live under prefixed
// keccak keys; hot records are RLP-encoded, the config is JSON so its
// optional pending-change fields survive the trip.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	beastPrefix   = []byte("zb/beast/")
	uriPrefix     = []byte("zb/beast-uri/")
	accountPrefix = []byte("zb/account/")
	sessionPrefix = []byte("zb/combat/")
	configKey     = ethcrypto.Keccak256([]byte("zb/config"))
	supplyKey     = ethcrypto.Keccak256([]byte("zb/supply"))
)

func beastKey(id [32]byte) []byte {
	buf := make([]byte, len(beastPrefix)+len(id))
	copy(buf, beastPrefix)
	copy(buf[len(beastPrefix):], id[:])
	return ethcrypto.Keccak256(buf)
}

func uriKey(uri string) []byte {
	buf := make([]byte, len(uriPrefix)+len(uri))
	copy(buf, uriPrefix)
	copy(buf[len(uriPrefix):], uri)
	return ethcrypto.Keccak256(buf)
}

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func sessionKey(id uint64) []byte {
	buf := make([]byte, len(sessionPrefix)+8)
	copy(buf, sessionPrefix)
	binary.LittleEndian.PutUint64(buf[len(sessionPrefix):], id)
	return ethcrypto.Keccak256(buf)
}

// storedBeast mirrors types.BeastAccount with RLP-friendly fields: unix
// timestamps widened to uint64 and the parent pair flattened.
type storedBeast struct {
	ID             [32]byte
	Owner          [20]byte
	Name           string
	Traits         [10]byte
	RarityScore    uint64
	LastActivityAt uint64
	ActivityCount  uint32
	PendingRewards uint64
	ParentA        [32]byte
	ParentB        [32]byte
	Generation     uint8
	LastBreedingAt uint64
	BreedingCount  uint8
	MetadataURI    string
	Abilities      [4]uint8
	AbilityLevels  [4]uint8
	HP             uint16
	Energy         uint8
	Wins           uint32
	Losses         uint32
	LastCombatAt   uint64
	InCombat       bool
}

func toStoredBeast(b *types.BeastAccount) *storedBeast {
	return &storedBeast{
		ID:             b.ID,
		Owner:          b.Owner,
		Name:           b.Name,
		Traits:         b.Traits,
		RarityScore:    b.RarityScore,
		LastActivityAt: uint64(b.LastActivityAt),
		ActivityCount:  b.ActivityCount,
		PendingRewards: b.PendingRewards,
		ParentA:        b.Parents[0],
		ParentB:        b.Parents[1],
		Generation:     b.Generation,
		LastBreedingAt: uint64(b.LastBreedingAt),
		BreedingCount:  b.BreedingCount,
		MetadataURI:    b.MetadataURI,
		Abilities:      b.Abilities,
		AbilityLevels:  b.AbilityLevels,
		HP:             b.Combat.HP,
		Energy:         b.Combat.Energy,
		Wins:           b.Combat.Wins,
		Losses:         b.Combat.Losses,
		LastCombatAt:   uint64(b.Combat.LastCombatAt),
		InCombat:       b.Combat.InCombat,
	}
}

func (s *storedBeast) account() *types.BeastAccount {
	return &types.BeastAccount{
		ID:             s.ID,
		Owner:          s.Owner,
		Name:           s.Name,
		Traits:         s.Traits,
		RarityScore:    s.RarityScore,
		LastActivityAt: int64(s.LastActivityAt),
		ActivityCount:  s.ActivityCount,
		PendingRewards: s.PendingRewards,
		Parents:        [2][32]byte{s.ParentA, s.ParentB},
		Generation:     s.Generation,
		LastBreedingAt: int64(s.LastBreedingAt),
		BreedingCount:  s.BreedingCount,
		MetadataURI:    s.MetadataURI,
		Abilities:      s.Abilities,
		AbilityLevels:  s.AbilityLevels,
		Combat: types.CombatStats{
			HP:           s.HP,
			Energy:       s.Energy,
			Wins:         s.Wins,
			Losses:       s.Losses,
			LastCombatAt: int64(s.LastCombatAt),
			InCombat:     s.InCombat,
		},
	}
}

type storedSession struct {
	SessionID       uint64
	Challenger      [32]byte
	Opponent        [32]byte
	ChallengerOwner [20]byte
	OpponentOwner   [20]byte
	WagerAmount     uint64
	EscrowedAmount  uint64
	TurnCount       uint8
	ChallengerHP    uint16
	OpponentHP      uint16
	LastTurnAt      uint64
	CombatSeed      uint64
	Status          uint8
}

func toStoredSession(s *types.CombatSession) *storedSession {
	return &storedSession{
		SessionID:       s.SessionID,
		Challenger:      s.Challenger,
		Opponent:        s.Opponent,
		ChallengerOwner: s.ChallengerOwner,
		OpponentOwner:   s.OpponentOwner,
		WagerAmount:     s.WagerAmount,
		EscrowedAmount:  s.EscrowedAmount,
		TurnCount:       s.TurnCount,
		ChallengerHP:    s.ChallengerHP,
		OpponentHP:      s.OpponentHP,
		LastTurnAt:      uint64(s.LastTurnAt),
		CombatSeed:      s.CombatSeed,
		Status:          uint8(s.Status),
	}
}

func (s *storedSession) session() *types.CombatSession {
	return &types.CombatSession{
		SessionID:       s.SessionID,
		Challenger:      s.Challenger,
		Opponent:        s.Opponent,
		ChallengerOwner: s.ChallengerOwner,
		OpponentOwner:   s.OpponentOwner,
		WagerAmount:     s.WagerAmount,
		EscrowedAmount:  s.EscrowedAmount,
		TurnCount:       s.TurnCount,
		ChallengerHP:    s.ChallengerHP,
		OpponentHP:      s.OpponentHP,
		LastTurnAt:      int64(s.LastTurnAt),
		CombatSeed:      s.CombatSeed,
		Status:          types.CombatStatus(s.Status),
	}
}

// BeastGet loads a beast record by ID.
func (m *Manager) BeastGet(id [32]byte) (*types.BeastAccount, bool, error) {
	data, err := m.db.Get(beastKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored := new(storedBeast)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("state: decode beast: %w", err)
	}
	return stored.account(), true, nil
}

// BeastPut writes a beast record under its ID.
func (m *Manager) BeastPut(b *types.BeastAccount) error {
	if b == nil {
		return errors.New("state: nil beast")
	}
	encoded, err := rlp.EncodeToBytes(toStoredBeast(b))
	if err != nil {
		return fmt.Errorf("state: encode beast: %w", err)
	}
	return m.db.Put(beastKey(b.ID), encoded)
}

// BeastURITaken reports whether a metadata URI is already claimed.
func (m *Manager) BeastURITaken(uri string) (bool, error) {
	return m.db.Has(uriKey(uri))
}

// BeastIndexURI claims a metadata URI for a beast.
func (m *Manager) BeastIndexURI(uri string, id [32]byte) error {
	return m.db.Put(uriKey(uri), id[:])
}

// BeastIDForURI resolves the URI index entry, if present.
func (m *Manager) BeastIDForURI(uri string) ([32]byte, bool, error) {
	var id [32]byte
	data, err := m.db.Get(uriKey(uri))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return id, false, nil
	}
	if err != nil {
		return id, false, err
	}
	if len(data) != len(id) {
		return id, false, fmt.Errorf("state: uri index entry is %d bytes", len(data))
	}
	copy(id[:], data)
	return id, true, nil
}

// GetAccount loads a token account, returning a fresh zero-balance account
// for addresses never seen before.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	data, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return &types.Account{BalanceZen: big.NewInt(0)}, nil
	}
	if err != nil {
		return nil, err
	}
	account := new(types.Account)
	if err := rlp.DecodeBytes(data, account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	account.EnsureDefaults()
	return account, nil
}

// PutAccount writes a token account.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	account.EnsureDefaults()
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), encoded)
}

// TokenSupply returns the circulating supply counter, zero when unset.
func (m *Manager) TokenSupply() (*big.Int, error) {
	data, err := m.db.Get(supplyKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return big.NewInt(0), nil
	}
	if err != nil {
		return nil, err
	}
	supply := new(big.Int)
	if err := rlp.DecodeBytes(data, supply); err != nil {
		return nil, fmt.Errorf("state: decode supply: %w", err)
	}
	return supply, nil
}

// SetTokenSupply writes the circulating supply counter.
func (m *Manager) SetTokenSupply(supply *big.Int) error {
	if supply == nil || supply.Sign() < 0 {
		return errors.New("state: supply must be non-negative")
	}
	encoded, err := rlp.EncodeToBytes(supply)
	if err != nil {
		return fmt.Errorf("state: encode supply: %w", err)
	}
	return m.db.Put(supplyKey, encoded)
}

// EconomyConfig loads the governed economy configuration.
func (m *Manager) EconomyConfig() (*params.Config, bool, error) {
	data, err := m.db.Get(configKey)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	cfg := new(params.Config)
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, false, fmt.Errorf("state: decode config: %w", err)
	}
	return cfg, true, nil
}

// SetEconomyConfig writes the governed economy configuration.
func (m *Manager) SetEconomyConfig(cfg *params.Config) error {
	if cfg == nil {
		return errors.New("state: nil config")
	}
	encoded, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("state: encode config: %w", err)
	}
	return m.db.Put(configKey, encoded)
}

// CombatSessionGet loads a combat session by its numeric ID.
func (m *Manager) CombatSessionGet(id uint64) (*types.CombatSession, bool, error) {
	data, err := m.db.Get(sessionKey(id))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	stored := new(storedSession)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, fmt.Errorf("state: decode session: %w", err)
	}
	return stored.session(), true, nil
}

// CombatSessionPut writes a combat session.
func (m *Manager) CombatSessionPut(s *types.CombatSession) error {
	if s == nil {
		return errors.New("state: nil session")
	}
	encoded, err := rlp.EncodeToBytes(toStoredSession(s))
	if err != nil {
		return fmt.Errorf("state: encode session: %w", err)
	}
	return m.db.Put(sessionKey(s.SessionID), encoded)
}

// CombatSessionDelete removes a settled session.
func (m *Manager) CombatSessionDelete(id uint64) error {
	return m.db.Delete(sessionKey(id))
}
