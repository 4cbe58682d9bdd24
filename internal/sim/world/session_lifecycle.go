package world

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/component"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/ability/tags"
	"github.com/VMF-HIBIKI/GAS-Learning/internal/protocol"
)

func normalizeActorName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "actor"
	}
	if len(name) > 40 {
		name = name[:40]
	}
	return name
}

func newResumeToken(worldID string, nonce int64) string {
	return fmt.Sprintf("resume_%s_%d", worldID, nonce)
}

func (w *World) buildWelcome(a *Actor) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ActorID:         a.ID,
		ResumeToken:     a.ResumeToken,
		WorldParams: protocol.WorldParams{
			TickRateHz: w.cfg.Tuning.TickRateHz,
			WorldID:    w.cfg.ID,
		},
		Catalogs: protocol.CatalogDigests{
			Abilities:    protocol.DigestRef{Digest: w.catalogs.Abilities.Digest, Count: len(w.catalogs.Abilities.IDs)},
			Effects:      protocol.DigestRef{Digest: w.catalogs.Effects.Digest, Count: len(w.catalogs.Effects.ByID)},
			TuningDigest: w.tuningDigest(),
		},
	}
}

func (w *World) tuningDigest() string {
	if w.cfg.TuningDigest != "" {
		return w.cfg.TuningDigest
	}
	b, _ := json.Marshal(w.cfg.Tuning)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (w *World) buildCatalogMsgs() []protocol.CatalogMsg {
	abilities := make([]any, 0, len(w.catalogs.Abilities.IDs))
	for _, id := range w.catalogs.Abilities.IDs {
		abilities = append(abilities, w.catalogs.Abilities.Defs[id])
	}
	effectIDs := make([]string, 0, len(w.catalogs.Effects.ByID))
	for id := range w.catalogs.Effects.ByID {
		effectIDs = append(effectIDs, id)
	}
	sort.Strings(effectIDs)
	effects := make([]any, 0, len(effectIDs))
	for _, id := range effectIDs {
		effects = append(effects, w.catalogs.Effects.ByID[id])
	}
	return []protocol.CatalogMsg{
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "abilities",
			Digest:          w.catalogs.Abilities.Digest,
			Part:            1,
			TotalParts:      1,
			Data:            abilities,
		},
		{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            "effects",
			Digest:          w.catalogs.Effects.Digest,
			Part:            1,
			TotalParts:      1,
			Data:            effects,
		},
	}
}

// newComponent builds an actor's component wired to the world's registry,
// shared ability config and event buffer.
func (w *World) newComponent(id string, local bool) *component.Component {
	c := component.New(w.reg, component.Options{
		ID:                ability.ActorID(id),
		Role:              ability.RoleAuthority,
		LocallyControlled: local,
		Config:            w.abilityCfg,
		Logger:            w.log,
		OnEvent:           w.collectEvent,
	})
	w.reg.Add(c)
	w.reg.AddAvatar(&component.Avatar{ID: ability.ActorID(id), Role: ability.RoleAuthority})
	return c
}

// grantStarter gives a fresh component the starter attributes, tags and
// abilities from tuning.
func (w *World) grantStarter(c *component.Component) {
	st := w.cfg.Tuning.Starter
	names := make([]string, 0, len(st.Attributes))
	for k := range st.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		c.SetAttribute(k, st.Attributes[k])
	}
	if len(st.LooseTags) > 0 {
		c.AddLooseTags(tags.FromStrings(st.LooseTags))
	}
	for _, sa := range st.Abilities {
		def, ok := w.catalogs.Lookup(sa.ID)
		if !ok {
			w.log.Warn("starter ability missing from catalog", zap.String("ability", sa.ID))
			continue
		}
		input := component.NoInput
		if sa.InputID != nil {
			input = *sa.InputID
		}
		c.GiveAbility(c.BuildSpec(component.Grant{Def: def, Level: sa.Level, InputID: input, SourceID: "starter"}))
	}
}

func (w *World) joinActor(req JoinRequest) (JoinResponse, RecordedJoin) {
	name := normalizeActorName(req.Name)
	id := fmt.Sprintf("A%d", w.nextActorNum.Add(1))

	a := &Actor{
		ID:                id,
		Name:              name,
		LocallyControlled: req.LocallyControlled,
		ResumeToken:       newResumeToken(w.cfg.ID, time.Now().UnixNano()),
	}
	a.Comp = w.newComponent(id, req.LocallyControlled)
	w.actors[id] = a
	w.grantStarter(a.Comp)
	if req.Out != nil {
		w.clients[id] = &clientState{Out: req.Out}
	}
	w.log.Info("actor joined", zap.String("actor", id), zap.String("name", name), zap.Bool("local", req.LocallyControlled))

	return JoinResponse{Welcome: w.buildWelcome(a), Catalogs: w.buildCatalogMsgs()},
		RecordedJoin{ActorID: id, Name: name, LocallyControlled: req.LocallyControlled}
}

// resumeActor reattaches a connection to an actor that is still present.
// The previous connection, if any, stops receiving updates.
func (w *World) resumeActor(req JoinRequest) (JoinResponse, bool) {
	for _, id := range w.sortedActorIDs() {
		a := w.actors[id]
		if a.ResumeToken != req.ResumeToken {
			continue
		}
		if req.Out != nil {
			w.clients[id] = &clientState{Out: req.Out}
		}
		w.log.Info("actor resumed", zap.String("actor", id))
		return JoinResponse{Welcome: w.buildWelcome(a), Catalogs: w.buildCatalogMsgs()}, true
	}
	return JoinResponse{}, false
}

// leaveActor tears down every activation of the actor and removes it.
func (w *World) leaveActor(id string) bool {
	a := w.actors[id]
	if a == nil {
		return false
	}
	a.Comp.DestroyActiveState()
	w.reg.RemoveAvatar(ability.ActorID(id))
	w.reg.Remove(ability.ActorID(id))
	delete(w.actors, id)
	delete(w.clients, id)
	w.log.Info("actor left", zap.String("actor", id))
	return true
}
