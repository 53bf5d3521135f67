package db

import (
	"encoding/json"
	"errors"
	"github.com/asdine/storm/v3"
	"github.com/asdine/storm/v3/q"
	"github.com/sirupsen/logrus"
	"github.com/tezoscommons/geopin/internal/geopin/config"
	"github.com/tezoscommons/geopin/internal/geopin/model"
	"github.com/tezoscommons/geopin/internal/geopin/pinkey"
	"time"
)

// EventRecord is one journal row. Payload holds the full event as JSON.
type EventRecord struct {
	ID      int       `storm:"id,increment"`
	EventID string    `storm:"unique"`
	Seq     uint64    `storm:"index"`
	Kind    string    `storm:"index"`
	Key     string    `storm:"index"`
	NewKey  string    `storm:"index"`
	Origin  string    `storm:"index"`
	Created time.Time `storm:"index"`
	Payload []byte
}

type KeyValue struct {
	ID    int    `storm:"id,increment"`
	Key   []byte `storm:"unique"`
	Value []byte
}

type StormDB struct {
	log   *logrus.Entry
	storm *storm.DB
}

func NewStormDB(c *config.Config, l *logrus.Entry) *StormDB {
	d, err := OpenStormDB(c.DB.Storm, l)
	if err != nil {
		l.WithField("source", "stormdb").Fatal(err)
		return nil
	}
	return d
}

func OpenStormDB(path string, l *logrus.Entry) (*StormDB, error) {
	d := StormDB{}
	d.log = l.WithField("source", "stormdb")

	db, err := storm.Open(path)
	if err != nil {
		return nil, err
	}
	d.storm = db
	return &d, nil
}

func (d *StormDB) Close() error {
	return d.storm.Close()
}

func (d *StormDB) Write(bucketName, key, value []byte) error {
	skey := append(append([]byte{}, bucketName...), key...)
	obj := KeyValue{}
	err := d.storm.One("Key", skey, &obj)
	if err != nil && !errors.Is(err, storm.ErrNotFound) {
		return err
	}
	obj.Key = skey
	obj.Value = value
	return d.storm.Save(&obj)
}

func (d *StormDB) Get(bucketName, key []byte) (val []byte, length int) {
	skey := append(append([]byte{}, bucketName...), key...)
	obj := KeyValue{}
	d.storm.One("Key", skey, &obj)
	return obj.Value, len(obj.Value)
}

/*
 * SaveEvent journals an event seen locally (origin "") or received from a
 * peer. Events already journaled are ignored. Unpinned events get their key
 * rebuilt from the parsed fields.
 */
func (d *StormDB) SaveEvent(e *model.Event, origin string) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	rec := EventRecord{
		EventID: e.ID,
		Seq:     e.Seq,
		Kind:    string(e.Kind),
		Key:     e.PinKey().Hex(),
		Origin:  origin,
		Created: time.Now().UTC(),
		Payload: payload,
	}
	if e.NewKey != nil {
		rec.NewKey = e.NewKey.Hex()
	}
	err = d.storm.Save(&rec)
	if errors.Is(err, storm.ErrAlreadyExists) {
		d.log.WithField("event", e.ID).Trace("event already journaled")
		return nil
	}
	return err
}

// Events returns one page of the journal, newest first. Pages start at 1.
func (d *StormDB) Events(pagesize, page int) ([]model.Event, error) {
	if page < 1 {
		page = 1
	}
	var recs []EventRecord
	err := d.storm.All(&recs, storm.Limit(pagesize), storm.Skip(pagesize*(page-1)), storm.Reverse())
	if err != nil {
		return nil, err
	}
	return decode(recs)
}

// EventsForKey returns every journaled event touching k, oldest first.
func (d *StormDB) EventsForKey(k pinkey.Key) ([]model.Event, error) {
	var recs []EventRecord
	err := d.storm.Select(q.Or(q.Eq("Key", k.Hex()), q.Eq("NewKey", k.Hex()))).OrderBy("ID").Find(&recs)
	if errors.Is(err, storm.ErrNotFound) {
		return []model.Event{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(recs)
}

func (d *StormDB) EventsByKind(kind model.EventKind) ([]model.Event, error) {
	var recs []EventRecord
	err := d.storm.Find("Kind", string(kind), &recs)
	if errors.Is(err, storm.ErrNotFound) {
		return []model.Event{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(recs)
}

func decode(recs []EventRecord) ([]model.Event, error) {
	res := make([]model.Event, 0, len(recs))
	for _, r := range recs {
		e := model.Event{}
		if err := json.Unmarshal(r.Payload, &e); err != nil {
			return nil, err
		}
		e.Origin = r.Origin
		res = append(res, e)
	}
	return res, nil
}
