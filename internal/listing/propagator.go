// Package listing applies listing submissions and edits, then fans the
// result out to image storage, the social feed, followers and search.
package listing

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"propertyhub/internal/apperr"
	"propertyhub/internal/approval"
	"propertyhub/internal/metrics"
	"propertyhub/internal/models"
	"propertyhub/internal/sideeffect"
	"propertyhub/internal/snapshot"
)

// Config tunes the propagator
type Config struct {
	// FrontendURL prefixes listing links in notifications and posts
	FrontendURL string
	// PreferStoredPostID uses the stored social post id before content matching
	PreferStoredPostID bool
	// NotifyConcurrency bounds parallel deliveries to followers
	NotifyConcurrency int
}

// Propagator applies listing edits and dispatches their side effects
type Propagator struct {
	store     Store
	storage   ObjectStorage
	feed      SocialFeed
	messenger Messenger
	indexer   Indexer
	history   History
	effects   *sideeffect.Runner
	cfg       Config
	logger    *zap.Logger
}

// NewPropagator creates a listing propagator
func NewPropagator(store Store, storage ObjectStorage, feed SocialFeed, messenger Messenger, indexer Indexer, history History, effects *sideeffect.Runner, cfg Config, logger *zap.Logger) *Propagator {
	if cfg.NotifyConcurrency <= 0 {
		cfg.NotifyConcurrency = 4
	}
	return &Propagator{
		store:     store,
		storage:   storage,
		feed:      feed,
		messenger: messenger,
		indexer:   indexer,
		history:   history,
		effects:   effects,
		cfg:       cfg,
		logger:    logger.Named("listing"),
	}
}

// ApplyUpdate merges patch into existing, reconciles images and saves.
// Only authorization, validation and persistence failures are returned;
// everything after the save is best-effort and not awaited.
func (p *Propagator) ApplyUpdate(ctx context.Context, existing *models.Property, patch Patch, actor *approval.Actor, imagesToRemove []string, imagesToAdd []Upload) (*models.Property, error) {
	if err := authorize(existing, actor); err != nil {
		return nil, err
	}
	if patch.TouchesAdminFields() && !approval.Decide(actor) {
		return nil, fmt.Errorf("%w: only administrators can pin listings", apperr.ErrForbidden)
	}
	approved, err := approval.Resolve(actor, patch.Approved, existing.Approved)
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	patch.apply(updated)
	updated.Approved = approved
	if err := validate(updated); err != nil {
		return nil, err
	}
	if updated.Title != existing.Title {
		if err := p.ensureTitleFree(ctx, updated.Title, existing.ID); err != nil {
			return nil, err
		}
	}

	removed, added := p.reconcileImages(ctx, existing.ImageURLs(), imagesToRemove, imagesToAdd)
	updated.SetImageURLs(mergeImages(existing.ImageURLs(), removed, added))

	if err := p.store.SaveProperty(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save property %d: %w", existing.ID, err)
	}
	metrics.ListingUpdates.WithLabelValues(strconv.FormatBool(updated.Approved)).Inc()
	p.logger.Info("listing updated",
		zap.Uint("property_id", updated.ID),
		zap.Bool("approved", updated.Approved),
		zap.Int("images_removed", len(removed)),
		zap.Int("images_added", len(added)),
	)

	changes := snapshot.DetectChanges(existing, updated, actorID(actor))
	if len(changes) > 0 {
		p.effects.Go(ctx, "listing_change_history", func(ctx context.Context) error {
			return p.history.Record(ctx, changes)
		})
	}

	if updated.Approved {
		previous := existing.SocialMessage()
		result := updated.Clone()
		p.effects.Go(ctx, "social_mirror", func(ctx context.Context) error {
			return p.mirror(ctx, result, previous)
		})
		p.effects.Go(ctx, "follower_notification", func(ctx context.Context) error {
			return p.notifyFollowers(ctx, result, snapshot.Summary(changes))
		})
		p.effects.Go(ctx, "search_index", func(ctx context.Context) error {
			return p.indexer.IndexProperty(ctx, result)
		})
	} else if existing.Approved {
		id := updated.ID
		p.effects.Go(ctx, "search_unindex", func(ctx context.Context) error {
			return p.indexer.DeleteProperty(ctx, id)
		})
	}

	return updated, nil
}

func authorize(existing *models.Property, actor *approval.Actor) error {
	if actor == nil {
		return fmt.Errorf("%w: login required to edit listings", apperr.ErrUnauthorized)
	}
	if approval.Decide(actor) {
		return nil
	}
	if existing.CreatedByID == nil || *existing.CreatedByID != actor.UserID {
		return fmt.Errorf("%w: only the owner or an administrator can edit this listing", apperr.ErrForbidden)
	}
	return nil
}

func actorID(actor *approval.Actor) *uint {
	if actor == nil {
		return nil
	}
	id := actor.UserID
	return &id
}

func (p *Propagator) ensureTitleFree(ctx context.Context, title string, selfID uint) error {
	other, err := p.store.FindPropertyByTitle(ctx, title)
	if err != nil {
		return fmt.Errorf("failed to check title: %w", err)
	}
	if other != nil && other.ID != selfID {
		return fmt.Errorf("%w: a property titled %q already exists", apperr.ErrConflict, title)
	}
	return nil
}

// reconcileImages runs the removals and the uploads side by side, each
// through the runner so a slow store cannot stall the request indefinitely.
// It returns the keys actually removed and the references actually added.
func (p *Propagator) reconcileImages(ctx context.Context, current, toRemove []string, toAdd []Upload) (removed map[string]bool, added []string) {
	present := make(map[string]bool, len(current))
	for _, u := range current {
		present[u] = true
	}

	removed = make(map[string]bool)
	slots := make([]string, len(toAdd))
	var mu sync.Mutex

	var fns []func(context.Context) error
	for _, key := range toRemove {
		key := key
		if _, dup := removed[key]; dup || !present[key] {
			continue
		}
		// reserve now so duplicate keys issue a single delete
		removed[key] = false
		fns = append(fns, func(ctx context.Context) error {
			err := p.effects.Do(ctx, "image_delete", func(ctx context.Context) error {
				return p.storage.Delete(ctx, key)
			})
			if err == nil {
				mu.Lock()
				removed[key] = true
				mu.Unlock()
			}
			return err
		})
	}
	for i, up := range toAdd {
		i, up := i, up
		fns = append(fns, func(ctx context.Context) error {
			var ref string
			err := p.effects.Do(ctx, "image_upload", func(ctx context.Context) error {
				var err error
				ref, err = p.storage.Upload(ctx, up.Data, up.Name)
				return err
			})
			if err == nil {
				slots[i] = ref
			}
			return err
		})
	}

	sideeffect.Settle(ctx, fns...)

	for key, ok := range removed {
		if !ok {
			delete(removed, key)
		}
	}
	for _, ref := range slots {
		if ref != "" {
			added = append(added, ref)
		}
	}
	return removed, added
}

// mergeImages keeps the existing order, drops removed keys and appends the
// new references once each
func mergeImages(current []string, removed map[string]bool, added []string) []string {
	seen := make(map[string]bool, len(current)+len(added))
	out := make([]string, 0, len(current)+len(added))
	for _, u := range current {
		if removed[u] || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	for _, u := range added {
		if seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

// notifyFollowers messages every user who favorited the listing. One
// failed delivery never stops the others.
func (p *Propagator) notifyFollowers(ctx context.Context, property *models.Property, summary string) error {
	users, err := p.store.FindUsersFavoriting(ctx, property.ID)
	if err != nil {
		return fmt.Errorf("failed to load followers of property %d: %w", property.ID, err)
	}
	if len(users) == 0 {
		return nil
	}

	subject := fmt.Sprintf("Update on %s", property.Title)
	body := p.notificationBody(property, summary)

	var g errgroup.Group
	g.SetLimit(p.cfg.NotifyConcurrency)
	failed := 0
	var mu sync.Mutex
	for _, u := range users {
		u := u
		g.Go(func() error {
			var err error
			if u.Phone != "" {
				err = p.effects.Do(ctx, "follower_whatsapp", func(ctx context.Context) error {
					return p.messenger.SendDirectMessage(ctx, u.Phone, subject+"\n"+body)
				})
			} else {
				err = p.effects.Do(ctx, "follower_mail", func(ctx context.Context) error {
					return p.messenger.SendMail(ctx, u.Email, subject, body)
				})
			}
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			// never fail the group, remaining recipients still get the message
			return nil
		})
	}
	_ = g.Wait()

	p.logger.Info("followers notified",
		zap.Uint("property_id", property.ID),
		zap.Int("recipients", len(users)),
		zap.Int("failed", failed),
	)
	return nil
}

func (p *Propagator) notificationBody(property *models.Property, summary string) string {
	body := fmt.Sprintf("%s has been updated.", property.Title)
	if summary != "" {
		body += "\n" + summary
	}
	if link := p.link(property); link != "" {
		body += "\n" + link
	}
	return body
}
