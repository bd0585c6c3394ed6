package bot

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/fpt/klein-bot/internal/session"
	"github.com/fpt/klein-bot/pkg/logger"
)

func (p *Pipeline) handleGroupsUpdate(ctx context.Context, sess session.Session, ev session.GroupsUpdate) error {
	var failed error
	for _, id := range ev.GroupIDs {
		meta, err := sess.GroupMetadata(ctx, id)
		if err != nil {
			p.logger.Warn("failed to refresh group", "group", id, "error", err)
			failed = errors.Wrapf(err, "group %s", id)
			continue
		}
		p.groups.Set(id, meta)
		p.logger.DebugWithIntention(logger.IntentionStatus, "Group refreshed", "group", id, "subject", meta.Subject)
	}
	return failed
}

func (p *Pipeline) handleParticipantsUpdate(ctx context.Context, sess session.Session, ev session.ParticipantsUpdate) error {
	p.groups.Delete(ev.GroupID)
	meta, err := p.groups.GetOrFetch(ctx, ev.GroupID, sess.GroupMetadata)
	if err != nil {
		return errors.Wrapf(err, "failed to refresh group %s", ev.GroupID)
	}

	var tmpl string
	switch ev.Action {
	case session.ParticipantAdd:
		tmpl = p.cfg.Groups.Welcome
	case session.ParticipantRemove:
		tmpl = p.cfg.Groups.Goodbye
	}
	if tmpl == "" {
		return nil
	}
	for _, user := range ev.Participants {
		if user == sess.Self() {
			continue
		}
		text := strings.NewReplacer("{user}", user, "{group}", meta.Subject).Replace(tmpl)
		p.sendText(ctx, sess, ev.GroupID, text, session.SendOptions{})
	}
	return nil
}
