package match_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/vaccie/valoverlay-discord/internal/domain/match"
	"github.com/vaccie/valoverlay-discord/internal/domain/model"
)

func TestBuildIndex(t *testing.T) {
	Convey("Given roster entries with full vendor identities", t, func() {
		entries := []model.RosterEntry{
			{PlayerID: "p1", CharacterID: "char-17"},
			{PlayerID: "p2", CharacterID: "char-3"},
			{PlayerID: "p3", CharacterID: "char-9"}, // no name known
		}
		names := map[string]string{
			"p1": "Robert#9999",
			"p2": "Alice#0001",
		}

		idx := match.BuildIndex(entries, names)

		Convey("Then full and bare names are keyed lower-cased", func() {
			So(idx["robert#9999"], ShouldEqual, "char-17")
			So(idx["robert"], ShouldEqual, "char-17")
			So(idx["alice#0001"], ShouldEqual, "char-3")
			So(idx["alice"], ShouldEqual, "char-3")
		})

		Convey("And unnamed entries are absent", func() {
			So(len(idx), ShouldEqual, 4)
		})
	})
}

func TestMatch_SelfIdentity(t *testing.T) {
	Convey("Given a participant that is the local operator", t, func() {
		idx := match.Index{"somebody": "char-1", "bob": "char-2"}
		self := match.Self{PlatformID: "me-123", CharacterID: "char-self"}

		Convey("Then self wins regardless of display name content", func() {
			p := model.VoiceParticipant{PlatformID: "me-123", DisplayName: "bob"}
			So(match.Match(p, idx, self, nil), ShouldEqual, "char-self")
		})

		Convey("And an unresolved self stays unresolved rather than falling back", func() {
			p := model.VoiceParticipant{PlatformID: "me-123", DisplayName: "bob"}
			So(match.Match(p, idx, match.Self{PlatformID: "me-123"}, nil), ShouldEqual, "")
		})
	})
}

func TestMatch_OverridePriority(t *testing.T) {
	Convey("Given an override that disagrees with an exact name hit", t, func() {
		idx := match.Index{
			"bob":         "char-exact",
			"robert":      "char-17",
			"robert#9999": "char-17",
		}
		overrides := map[string]string{"Bob": "robert"}
		p := model.VoiceParticipant{PlatformID: "A", DisplayName: "Bob"}

		Convey("Then the override target wins over the exact match", func() {
			So(match.Match(p, idx, match.Self{}, overrides), ShouldEqual, "char-17")
		})
	})

	Convey("Given an override whose target only appears as a substring", t, func() {
		idx := match.Index{"xx-robert-xx": "char-5"}
		overrides := map[string]string{"bob": "robert"}
		p := model.VoiceParticipant{PlatformID: "A", DisplayName: "bob"}

		So(match.Match(p, idx, match.Self{}, overrides), ShouldEqual, "char-5")
	})

	Convey("Given an override whose target is unknown entirely", t, func() {
		idx := match.Index{"alice": "char-1"}
		overrides := map[string]string{"bob": "zzz"}
		p := model.VoiceParticipant{PlatformID: "A", DisplayName: "bob"}

		Convey("Then matching falls through to the later rules", func() {
			So(match.Match(p, idx, match.Self{}, overrides), ShouldEqual, "")
		})
	})
}

func TestMatch_ExactAndBareNames(t *testing.T) {
	Convey("Given an index built from a tagged identity", t, func() {
		idx := match.BuildIndex(
			[]model.RosterEntry{{PlayerID: "p1", CharacterID: "char-7"}},
			map[string]string{"p1": "Foo#1234"},
		)

		Convey("Then a bare lower-case display name matches", func() {
			p := model.VoiceParticipant{PlatformID: "A", DisplayName: "foo"}
			So(match.Match(p, idx, match.Self{}, nil), ShouldEqual, "char-7")
		})

		Convey("And matching is case-insensitive", func() {
			p := model.VoiceParticipant{PlatformID: "A", DisplayName: "FOO"}
			So(match.Match(p, idx, match.Self{}, nil), ShouldEqual, "char-7")
		})
	})

	Convey("Given only the nickname matches exactly", t, func() {
		idx := match.Index{"sneaky": "char-2"}
		p := model.VoiceParticipant{PlatformID: "A", DisplayName: "unrelatedxyz", Nickname: "Sneaky"}
		So(match.Match(p, idx, match.Self{}, nil), ShouldEqual, "char-2")
	})
}

func TestMatch_Containment(t *testing.T) {
	Convey("Given names that only relate by containment", t, func() {
		idx := match.Index{"xxbobxx": "char-9"}

		Convey("Then display name contained in match name resolves", func() {
			p := model.VoiceParticipant{PlatformID: "A", DisplayName: "bob"}
			So(match.Match(p, idx, match.Self{}, nil), ShouldEqual, "char-9")
		})

		Convey("And match name contained in display name resolves", func() {
			p := model.VoiceParticipant{PlatformID: "A", DisplayName: "thexxbobxxone"}
			So(match.Match(p, idx, match.Self{}, nil), ShouldEqual, "char-9")
		})

		Convey("And nickname containment resolves when the name misses", func() {
			p := model.VoiceParticipant{PlatformID: "A", DisplayName: "qqqq", Nickname: "xxbob"}
			So(match.Match(p, idx, match.Self{}, nil), ShouldEqual, "char-9")
		})

		Convey("And no relation yields no character", func() {
			p := model.VoiceParticipant{PlatformID: "A", DisplayName: "zzz"}
			So(match.Match(p, idx, match.Self{}, nil), ShouldEqual, "")
		})
	})
}

func TestMatch_EndToEndExample(t *testing.T) {
	Convey("Given the documented override example", t, func() {
		idx := match.Index{"robert": "char-17", "robert#9999": "char-17"}
		overrides := map[string]string{"bob": "robert"}
		p := model.VoiceParticipant{PlatformID: "A", DisplayName: "Bob"}

		So(match.Match(p, idx, match.Self{}, overrides), ShouldEqual, "char-17")
	})
}
