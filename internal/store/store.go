package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

const (
	EVConnectionTimeOutKey          = "EVConnectionTimeOut"
	TxStartPointKey                 = "TxStartPoint"
	TxStopPointKey                  = "TxStopPoint"
	NetworkConfigurationPriorityKey = "NetworkConfigurationPriority"
	HeartbeatIntervalKey            = "default_heartbeat_interval"

	networkProfilePrefix = "NetworkConnectionProfile/"
)

type NetworkConnectionProfile struct {
	OCPPVersion     string `json:"ocppVersion"`
	OCPPTransport   string `json:"ocppTransport"`
	CSMSURL         string `json:"ocppCsmsUrl"`
	MessageTimeout  int    `json:"messageTimeout"`
	SecurityProfile int    `json:"securityProfile"`
	OCPPInterface   string `json:"ocppInterface"`
}

// Defaults seed the policy keys that are not yet stored.
type Defaults struct {
	EVConnectionTimeOut          int
	TxStartPoints                TxPoints
	TxStopPoints                 TxPoints
	NetworkConfigurationPriority []int
	NetworkProfiles              map[int]NetworkConnectionProfile
	HeartbeatInterval            int
}

// Store keeps the station policy values in badger.
type Store struct {
	db  *badger.DB
	log *logrus.Entry
}

// Open opens the badger database at path, or an in-memory one when path is
// empty.
func Open(path string, log *logrus.Entry) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(log.WithField("component", "badger"))
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Seed(d Defaults) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setIfNotExistsTX(txn, EVConnectionTimeOutKey, strconv.Itoa(d.EVConnectionTimeOut)); err != nil {
			return err
		}
		if err := setIfNotExistsTX(txn, TxStartPointKey, d.TxStartPoints.String()); err != nil {
			return err
		}
		if err := setIfNotExistsTX(txn, TxStopPointKey, d.TxStopPoints.String()); err != nil {
			return err
		}
		if err := setIfNotExistsTX(txn, NetworkConfigurationPriorityKey, formatInts(d.NetworkConfigurationPriority)); err != nil {
			return err
		}
		if err := setIfNotExistsTX(txn, HeartbeatIntervalKey, strconv.Itoa(d.HeartbeatInterval)); err != nil {
			return err
		}
		for slot, p := range d.NetworkProfiles {
			raw, err := json.Marshal(p)
			if err != nil {
				return err
			}
			if err := setIfNotExistsTX(txn, profileKey(slot), string(raw)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) Set(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}

func (s *Store) Get(key string) (string, error) {
	value := ""
	err := s.db.View(func(txn *badger.Txn) error {
		val, err := getKeyValueTX(txn, key)
		if err != nil {
			return err
		}
		value = val
		return nil
	})
	return value, err
}

func (s *Store) EVConnectionTimeOut() int {
	return s.mustGetInt(EVConnectionTimeOutKey)
}

func (s *Store) SetEVConnectionTimeOut(seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("%s must not be negative: %d", EVConnectionTimeOutKey, seconds)
	}
	return s.Set(EVConnectionTimeOutKey, strconv.Itoa(seconds))
}

func (s *Store) HeartbeatInterval() int {
	return s.mustGetInt(HeartbeatIntervalKey)
}

func (s *Store) SetHeartbeatInterval(seconds int) error {
	return s.Set(HeartbeatIntervalKey, strconv.Itoa(seconds))
}

func (s *Store) TxStartPoints() TxPoints {
	return s.mustGetPoints(TxStartPointKey)
}

func (s *Store) SetTxStartPoints(p TxPoints) error {
	return s.Set(TxStartPointKey, p.String())
}

func (s *Store) TxStopPoints() TxPoints {
	return s.mustGetPoints(TxStopPointKey)
}

func (s *Store) SetTxStopPoints(p TxPoints) error {
	return s.Set(TxStopPointKey, p.String())
}

func (s *Store) NetworkConfigurationPriority() []int {
	raw, err := s.Get(NetworkConfigurationPriorityKey)
	if err != nil {
		s.log.WithError(err).Warnln("failed to read", NetworkConfigurationPriorityKey)
		return nil
	}
	slots, err := ParseInts(raw)
	if err != nil {
		s.log.WithError(err).Warnln("stored value is corrupt", NetworkConfigurationPriorityKey)
		return nil
	}
	return slots
}

func (s *Store) SetNetworkConfigurationPriority(slots []int) error {
	return s.Set(NetworkConfigurationPriorityKey, formatInts(slots))
}

func (s *Store) SetNetworkConnectionProfile(slot int, p NetworkConnectionProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.Set(profileKey(slot), string(raw))
}

func (s *Store) HasNetworkConnectionProfile(slot int) bool {
	ok := false
	s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(profileKey(slot)))
		ok = err == nil
		return nil
	})
	return ok
}

func (s *Store) NetworkConnectionProfiles() map[int]NetworkConnectionProfile {
	profiles := make(map[int]NetworkConnectionProfile)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(networkProfilePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			slot, err := strconv.Atoi(strings.TrimPrefix(string(item.Key()), networkProfilePrefix))
			if err != nil {
				continue
			}
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			var p NetworkConnectionProfile
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			profiles[slot] = p
		}
		return nil
	})
	if err != nil {
		s.log.WithError(err).Warnln("failed to read network connection profiles")
	}
	return profiles
}

// Each calls fn for every stored key in key order.
func (s *Store) Each(fn func(key, value string, expiresAt uint64)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchSize = 10
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			fn(string(item.Key()), string(v), item.ExpiresAt())
		}
		return nil
	})
}

func (s *Store) mustGetInt(key string) int {
	var v int
	err := s.db.View(func(txn *badger.Txn) error {
		i, err := getIntKeyTX(txn, key)
		v = i
		return err
	})
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warnln("failed to read integer")
	}
	return v
}

func (s *Store) mustGetPoints(key string) TxPoints {
	raw, err := s.Get(key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warnln("failed to read option list")
		return TxPoints{}
	}
	p, err := ParseTxPoints(raw)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warnln("stored option list is corrupt")
		return TxPoints{}
	}
	return p
}

// ParseInts reads a comma separated list of integers. The empty string is an
// empty list.
func ParseInts(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []int{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func formatInts(v []int) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

func profileKey(slot int) string {
	return networkProfilePrefix + strconv.Itoa(slot)
}

// ProfileSlots returns the configured profile slots in ascending order.
func ProfileSlots(profiles map[int]NetworkConnectionProfile) []int {
	slots := make([]int, 0, len(profiles))
	for slot := range profiles {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots
}

func getKeyValueTX(txn *badger.Txn, key string) (string, error) {
	val, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", nil
		}
		return "", err
	}
	v, err := val.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func getIntKeyTX(txn *badger.Txn, key string) (int, error) {
	v, err := getKeyValueTX(txn, key)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.Atoi(v)
}

func setIfNotExistsTX(txn *badger.Txn, key, value string) error {
	_, err := txn.Get([]byte(key))
	if err == nil {
		return nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Set([]byte(key), []byte(value))
}
