package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/okian/gestor/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func validRecord() model.ClientRecord {
	return model.ClientRecord{OwnerID: "p1", ClientID: "c1", Level: 5, Mood: 2}
}

func TestClientRecord_Validate(t *testing.T) {
	Convey("Given a client record", t, func() {
		Convey("When every field is in range", func() {
			So(validRecord().Validate(), ShouldBeNil)
		})

		Convey("When the domain bounds are hit exactly", func() {
			r := validRecord()
			r.Level, r.Mood = model.MaxLevel, model.MinMood
			So(r.Validate(), ShouldBeNil)
			r.Level, r.Mood = model.MinLevel, model.MaxMood
			So(r.Validate(), ShouldBeNil)
		})

		Convey("When the level is outside 1-10", func() {
			r := validRecord()
			r.Level = 11
			err := r.Validate()

			Convey("Then it is malformed and names the field", func() {
				So(errors.Is(err, model.ErrMalformedRecord), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "Level=11")
				So(err.Error(), ShouldContainSubstring, "p1/c1")
			})
		})

		Convey("When the level is missing", func() {
			r := validRecord()
			r.Level = 0
			So(errors.Is(r.Validate(), model.ErrMalformedRecord), ShouldBeTrue)
		})

		Convey("When the mood is outside 1-4", func() {
			r := validRecord()
			r.Mood = 5
			So(errors.Is(r.Validate(), model.ErrMalformedRecord), ShouldBeTrue)
		})

		Convey("When identity fields are missing", func() {
			r := validRecord()
			r.OwnerID, r.ClientID = "", ""
			err := r.Validate()

			Convey("Then both are reported", func() {
				So(errors.Is(err, model.ErrMalformedRecord), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "OwnerID is required")
				So(err.Error(), ShouldContainSubstring, "ClientID is required")
			})
		})
	})
}

func TestClientRecord_Label(t *testing.T) {
	Convey("Given a record without a display name", t, func() {
		r := validRecord()
		So(r.Label(), ShouldEqual, "c1")

		Convey("When a display name is set", func() {
			r.DisplayName = "Acme"
			So(r.Label(), ShouldEqual, "Acme")
		})
	})
}

func TestClientRecord_JSON(t *testing.T) {
	Convey("Given a record store document", t, func() {
		doc := `{"_id":"abc","playerId":"p1","cliente_id":"c1","nome_cliente":"Acme",
			"nivel":7,"humor":3,"risco_cancelamento":true,"ultima_interacao":"2025-01-02T03:04:05Z"}`

		var r model.ClientRecord
		err := json.Unmarshal([]byte(doc), &r)

		Convey("Then it decodes into the domain record", func() {
			So(err, ShouldBeNil)
			So(r.StorageKey, ShouldEqual, "abc")
			So(r.Key(), ShouldResemble, model.Key{OwnerID: "p1", ClientID: "c1"})
			So(r.Level, ShouldEqual, 7)
			So(r.Mood, ShouldEqual, 3)
			So(r.AtRisk, ShouldBeTrue)
			So(r.LastInteractionAt.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)), ShouldBeTrue)
		})

		Convey("And a missing risk flag decodes as false", func() {
			var r2 model.ClientRecord
			So(json.Unmarshal([]byte(`{"playerId":"p1","cliente_id":"c2","nivel":1,"humor":1}`), &r2), ShouldBeNil)
			So(r2.AtRisk, ShouldBeFalse)
			So(r2.StorageKey, ShouldBeEmpty)
		})
	})
}

func TestIndex(t *testing.T) {
	Convey("Given a dataset", t, func() {
		a := validRecord()
		b := validRecord()
		b.ClientID = "c2"

		Convey("When keys are unique", func() {
			idx, err := model.Index("incoming", []model.ClientRecord{a, b})
			So(err, ShouldBeNil)
			So(idx[a.Key()], ShouldEqual, 0)
			So(idx[b.Key()], ShouldEqual, 1)
		})

		Convey("When the same client belongs to two owners", func() {
			c := validRecord()
			c.OwnerID = "p2"
			_, err := model.Index("incoming", []model.ClientRecord{a, c})
			So(err, ShouldBeNil)
		})

		Convey("When a key repeats", func() {
			_, err := model.Index("baseline", []model.ClientRecord{a, b, a})

			Convey("Then a collision error names the dataset and positions", func() {
				So(errors.Is(err, model.ErrIdentityCollision), ShouldBeTrue)
				var ce *model.CollisionError
				So(errors.As(err, &ce), ShouldBeTrue)
				So(ce.Dataset, ShouldEqual, "baseline")
				So(ce.First, ShouldEqual, 0)
				So(ce.Second, ShouldEqual, 2)
			})
		})
	})
}

func TestClone(t *testing.T) {
	Convey("Given a slice of records", t, func() {
		in := []model.ClientRecord{validRecord()}
		out := model.Clone(in)
		out[0].Level = 9
		So(in[0].Level, ShouldEqual, 5)
		So(model.Clone(nil), ShouldBeNil)
	})
}
