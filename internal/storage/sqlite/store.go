package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/sonroyaalmerol/shuriken-dav/internal/apperr"
	"github.com/sonroyaalmerol/shuriken-dav/internal/storage"
	"github.com/sonroyaalmerol/shuriken-dav/internal/store/model"
)

var _ storage.Store = (*Store)(nil)

func (s *Store) CreatePrincipal(ctx context.Context, p model.Principal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO principal (id, type, slug, display_name, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, string(p.Type), p.Slug, p.DisplayName, p.CreatedAt, p.UpdatedAt, nullTime(p.DeletedAt))
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "create principal").Retry()
	}
	return nil
}

func (s *Store) GetPrincipalBySlug(ctx context.Context, slug string) (*model.Principal, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, slug, display_name, created_at, updated_at, deleted_at
		FROM principal WHERE slug = ? AND deleted_at IS NULL`, slug)
	return scanPrincipal(row)
}

func (s *Store) GetPrincipalByID(ctx context.Context, id string) (*model.Principal, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, slug, display_name, created_at, updated_at, deleted_at
		FROM principal WHERE id = ? AND deleted_at IS NULL`, id)
	return scanPrincipal(row)
}

func scanPrincipal(row *sql.Row) (*model.Principal, bool, error) {
	var p model.Principal
	var typ string
	var deletedAt sql.NullTime
	if err := row.Scan(&p.ID, &typ, &p.Slug, &p.DisplayName, &p.CreatedAt, &p.UpdatedAt, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperr.Wrap(apperr.Database, err, "scan principal").Retry()
	}
	p.Type = model.PrincipalType(typ)
	p.DeletedAt = fromNullTime(deletedAt)
	return &p, true, nil
}

func (s *Store) ListPrincipals(ctx context.Context) ([]model.Principal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, slug, display_name, created_at, updated_at, deleted_at
		FROM principal WHERE deleted_at IS NULL`)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list principals").Retry()
	}
	defer rows.Close()
	return scanPrincipals(rows)
}

func (s *Store) ListGroupMembers(ctx context.Context, groupPrincipalID string) ([]model.Principal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.type, p.slug, p.display_name, p.created_at, p.updated_at, p.deleted_at
		FROM principal p
		JOIN membership m ON m.member_principal_id = p.id
		WHERE m.group_principal_id = ? AND p.deleted_at IS NULL`, groupPrincipalID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list group members").Retry()
	}
	defer rows.Close()
	return scanPrincipals(rows)
}

func (s *Store) ListMemberGroups(ctx context.Context, memberPrincipalID string) ([]model.Principal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.type, p.slug, p.display_name, p.created_at, p.updated_at, p.deleted_at
		FROM principal p
		JOIN membership m ON m.group_principal_id = p.id
		WHERE m.member_principal_id = ? AND p.deleted_at IS NULL`, memberPrincipalID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list member groups").Retry()
	}
	defer rows.Close()
	return scanPrincipals(rows)
}

func scanPrincipals(rows *sql.Rows) ([]model.Principal, error) {
	var out []model.Principal
	for rows.Next() {
		var p model.Principal
		var typ string
		var deletedAt sql.NullTime
		if err := rows.Scan(&p.ID, &typ, &p.Slug, &p.DisplayName, &p.CreatedAt, &p.UpdatedAt, &deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan principal row").Retry()
		}
		p.Type = model.PrincipalType(typ)
		p.DeletedAt = fromNullTime(deletedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) AddMembership(ctx context.Context, m model.Membership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO membership (id, group_principal_id, member_principal_id, created_at)
		VALUES (?, ?, ?, ?)`, m.ID, m.GroupPrincipalID, m.MemberPrincipalID, m.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "add membership").Retry()
	}
	return nil
}

func (s *Store) CreateCollection(ctx context.Context, c model.Collection) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO dav_collection
			(id, owner_principal_id, type, slug, display_name, description, timezone_tzid, sync_revision, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerPrincipalID, string(c.Type), c.Slug, c.DisplayName, c.Description, c.TimezoneTZID,
		c.SyncRevision, c.CreatedAt, c.UpdatedAt, nullTime(c.DeletedAt))
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "create collection").Retry()
	}
	return nil
}

func (s *Store) GetCollection(ctx context.Context, ownerPrincipalID string, typ model.CollectionType, slug string) (*model.Collection, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_principal_id, type, slug, display_name, description, timezone_tzid, sync_revision, created_at, updated_at, deleted_at
		FROM dav_collection
		WHERE owner_principal_id = ? AND type = ? AND slug = ? AND deleted_at IS NULL`,
		ownerPrincipalID, string(typ), slug)
	return scanCollection(row)
}

func (s *Store) GetCollectionByID(ctx context.Context, id string) (*model.Collection, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_principal_id, type, slug, display_name, description, timezone_tzid, sync_revision, created_at, updated_at, deleted_at
		FROM dav_collection WHERE id = ? AND deleted_at IS NULL`, id)
	return scanCollection(row)
}

func scanCollection(row *sql.Row) (*model.Collection, bool, error) {
	var c model.Collection
	var typ string
	var deletedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.OwnerPrincipalID, &typ, &c.Slug, &c.DisplayName, &c.Description,
		&c.TimezoneTZID, &c.SyncRevision, &c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperr.Wrap(apperr.Database, err, "scan collection").Retry()
	}
	c.Type = model.CollectionType(typ)
	c.DeletedAt = fromNullTime(deletedAt)
	return &c, true, nil
}

func (s *Store) ListCollectionsByOwner(ctx context.Context, ownerPrincipalID string, typ model.CollectionType) ([]model.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_principal_id, type, slug, display_name, description, timezone_tzid, sync_revision, created_at, updated_at, deleted_at
		FROM dav_collection
		WHERE owner_principal_id = ? AND type = ? AND deleted_at IS NULL
		ORDER BY slug`, ownerPrincipalID, string(typ))
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list collections").Retry()
	}
	defer rows.Close()

	var out []model.Collection
	for rows.Next() {
		var c model.Collection
		var ctyp string
		var deletedAt sql.NullTime
		if err := rows.Scan(&c.ID, &c.OwnerPrincipalID, &ctyp, &c.Slug, &c.DisplayName, &c.Description,
			&c.TimezoneTZID, &c.SyncRevision, &c.CreatedAt, &c.UpdatedAt, &deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan collection row").Retry()
		}
		c.Type = model.CollectionType(ctyp)
		c.DeletedAt = fromNullTime(deletedAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpdateCollectionProps(ctx context.Context, id string, displayName, description *string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if displayName != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE dav_collection SET display_name = ?, updated_at = ? WHERE id = ?`,
				*displayName, time.Now().UTC(), id); err != nil {
				return apperr.Wrap(apperr.Database, err, "update collection display name").Retry()
			}
		}
		if description != nil {
			if _, err := tx.ExecContext(ctx, `UPDATE dav_collection SET description = ?, updated_at = ? WHERE id = ?`,
				*description, time.Now().UTC(), id); err != nil {
				return apperr.Wrap(apperr.Database, err, "update collection description").Retry()
			}
		}
		return nil
	})
}

func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE dav_collection SET deleted_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "delete collection").Retry()
	}
	return nil
}

func (s *Store) GetInstanceBySlug(ctx context.Context, collectionID, slug string) (*model.Instance, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, collection_id, entity_id, content_type, etag, sync_revision, last_modified, slug, schedule_tag, deleted_at
		FROM dav_instance WHERE collection_id = ? AND slug = ? AND deleted_at IS NULL`, collectionID, slug)
	return scanInstance(row)
}

func (s *Store) GetInstanceByID(ctx context.Context, id string) (*model.Instance, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, collection_id, entity_id, content_type, etag, sync_revision, last_modified, slug, schedule_tag, deleted_at
		FROM dav_instance WHERE id = ? AND deleted_at IS NULL`, id)
	return scanInstance(row)
}

func scanInstance(row *sql.Row) (*model.Instance, bool, error) {
	var inst model.Instance
	var scheduleTag sql.NullString
	var deletedAt sql.NullTime
	if err := row.Scan(&inst.ID, &inst.CollectionID, &inst.EntityID, &inst.ContentType, &inst.ETag,
		&inst.SyncRevision, &inst.LastModified, &inst.Slug, &scheduleTag, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, apperr.Wrap(apperr.Database, err, "scan instance").Retry()
	}
	if scheduleTag.Valid {
		inst.ScheduleTag = &scheduleTag.String
	}
	inst.DeletedAt = fromNullTime(deletedAt)
	return &inst, true, nil
}

func (s *Store) ListInstances(ctx context.Context, collectionID string) ([]model.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_id, entity_id, content_type, etag, sync_revision, last_modified, slug, schedule_tag, deleted_at
		FROM dav_instance WHERE collection_id = ? AND deleted_at IS NULL ORDER BY slug`, collectionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list instances").Retry()
	}
	defer rows.Close()
	return scanInstances(rows)
}

func scanInstances(rows *sql.Rows) ([]model.Instance, error) {
	var out []model.Instance
	for rows.Next() {
		var inst model.Instance
		var scheduleTag sql.NullString
		var deletedAt sql.NullTime
		if err := rows.Scan(&inst.ID, &inst.CollectionID, &inst.EntityID, &inst.ContentType, &inst.ETag,
			&inst.SyncRevision, &inst.LastModified, &inst.Slug, &scheduleTag, &deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan instance row").Retry()
		}
		if scheduleTag.Valid {
			inst.ScheduleTag = &scheduleTag.String
		}
		inst.DeletedAt = fromNullTime(deletedAt)
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (s *Store) GetEntityTree(ctx context.Context, entityID string) (*storage.EntityTree, error) {
	var tree storage.EntityTree

	row := s.db.QueryRowContext(ctx, `
		SELECT id, type, logical_uid, created_at, updated_at, deleted_at
		FROM dav_entity WHERE id = ?`, entityID)
	var typ string
	var logicalUID sql.NullString
	var deletedAt sql.NullTime
	if err := row.Scan(&tree.Entity.ID, &typ, &logicalUID, &tree.Entity.CreatedAt, &tree.Entity.UpdatedAt, &deletedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.NotFoundf("entity not found: %s", entityID)
		}
		return nil, apperr.Wrap(apperr.Database, err, "scan entity").Retry()
	}
	tree.Entity.Type = model.EntityType(typ)
	if logicalUID.Valid {
		tree.Entity.LogicalUID = &logicalUID.String
	}
	tree.Entity.DeletedAt = fromNullTime(deletedAt)

	crows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, parent_id, ordinal, name FROM dav_component WHERE entity_id = ? ORDER BY ordinal`, entityID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list components").Retry()
	}
	defer crows.Close()
	componentIDs := make([]string, 0)
	for crows.Next() {
		var c model.Component
		var parentID sql.NullString
		if err := crows.Scan(&c.ID, &c.EntityID, &parentID, &c.Ordinal, &c.Name); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan component").Retry()
		}
		if parentID.Valid {
			c.ParentID = &parentID.String
		}
		tree.Components = append(tree.Components, c)
		componentIDs = append(componentIDs, c.ID)
	}
	if err := crows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "iterate components").Retry()
	}

	for _, compID := range componentIDs {
		prows, err := s.db.QueryContext(ctx, `
			SELECT id, component_id, ordinal, name, prop_group, value_kind, text_value, int_value,
			       float_value, bool_value, date_value, date_is_utc, bytes_value, json_value
			FROM dav_property WHERE component_id = ? ORDER BY ordinal`, compID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "list properties").Retry()
		}
		propIDs, err := scanPropertiesInto(&tree, prows)
		prows.Close()
		if err != nil {
			return nil, err
		}
		for _, propID := range propIDs {
			params, err := s.loadParameters(ctx, propID)
			if err != nil {
				return nil, err
			}
			tree.Parameters = append(tree.Parameters, params...)
		}
	}

	return &tree, nil
}

func scanPropertiesInto(tree *storage.EntityTree, rows *sql.Rows) ([]string, error) {
	var propIDs []string
	for rows.Next() {
		var p model.Property
		var kind string
		var textValue, group sql.NullString
		var intValue sql.NullInt64
		var floatValue sql.NullFloat64
		var boolValue sql.NullBool
		var dateValue sql.NullTime
		var dateIsUTC sql.NullBool
		var bytesValue, jsonValue []byte
		if err := rows.Scan(&p.ID, &p.ComponentID, &p.Ordinal, &p.Name, &group, &kind, &textValue,
			&intValue, &floatValue, &boolValue, &dateValue, &dateIsUTC, &bytesValue, &jsonValue); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan property").Retry()
		}
		p.Group = group.String
		p.ValueKind = model.ValueKind(kind)
		if textValue.Valid {
			p.TextValue = &textValue.String
		}
		if intValue.Valid {
			p.IntValue = &intValue.Int64
		}
		if floatValue.Valid {
			p.FloatValue = &floatValue.Float64
		}
		if boolValue.Valid {
			p.BoolValue = &boolValue.Bool
		}
		if dateValue.Valid {
			p.DateValue = &dateValue.Time
		}
		if dateIsUTC.Valid {
			p.DateIsUTC = &dateIsUTC.Bool
		}
		p.BytesValue = bytesValue
		p.JSONValue = jsonValue
		tree.Properties = append(tree.Properties, p)
		propIDs = append(propIDs, p.ID)
	}
	return propIDs, rows.Err()
}

func (s *Store) loadParameters(ctx context.Context, propertyID string) ([]model.Parameter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, ordinal, name, value_list FROM dav_parameter WHERE property_id = ? ORDER BY ordinal`, propertyID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list parameters").Retry()
	}
	defer rows.Close()
	var out []model.Parameter
	for rows.Next() {
		var p model.Parameter
		var valueList string
		if err := rows.Scan(&p.ID, &p.PropertyID, &p.Ordinal, &p.Name, &valueList); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan parameter").Retry()
		}
		p.Values = storage.SplitParamValues(valueList)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) PutEntityTree(ctx context.Context, req storage.PutInstanceRequest) (*model.Instance, error) {
	var result model.Instance
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()

		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM dav_entity WHERE id = ?`, req.Tree.Entity.ID).Scan(new(int)); err == nil {
			exists = true
		} else if !errors.Is(err, sql.ErrNoRows) {
			return apperr.Wrap(apperr.Database, err, "check entity existence").Retry()
		}

		if exists {
			if _, err := tx.ExecContext(ctx, `
				UPDATE dav_entity SET type = ?, logical_uid = ?, updated_at = ? WHERE id = ?`,
				string(req.Tree.Entity.Type), req.Tree.Entity.LogicalUID, now, req.Tree.Entity.ID); err != nil {
				return apperr.Wrap(apperr.Database, err, "update entity").Retry()
			}
			if err := deleteEntitySubtree(ctx, tx, req.Tree.Entity.ID); err != nil {
				return err
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dav_entity (id, type, logical_uid, created_at, updated_at, deleted_at)
				VALUES (?, ?, ?, ?, ?, NULL)`,
				req.Tree.Entity.ID, string(req.Tree.Entity.Type), req.Tree.Entity.LogicalUID, now, now); err != nil {
				return apperr.Wrap(apperr.Database, err, "insert entity").Retry()
			}
		}

		for _, c := range req.Tree.Components {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dav_component (id, entity_id, parent_id, ordinal, name) VALUES (?, ?, ?, ?, ?)`,
				c.ID, req.Tree.Entity.ID, c.ParentID, c.Ordinal, c.Name); err != nil {
				return apperr.Wrap(apperr.Database, err, "insert component").Retry()
			}
		}
		for _, p := range req.Tree.Properties {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dav_property
					(id, component_id, ordinal, name, prop_group, value_kind, text_value, int_value,
					 float_value, bool_value, date_value, date_is_utc, bytes_value, json_value)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				p.ID, p.ComponentID, p.Ordinal, p.Name, p.Group, string(p.ValueKind), p.TextValue, p.IntValue,
				p.FloatValue, p.BoolValue, p.DateValue, p.DateIsUTC, p.BytesValue, p.JSONValue); err != nil {
				return apperr.Wrap(apperr.Database, err, "insert property").Retry()
			}
		}
		for _, param := range req.Tree.Parameters {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dav_parameter (id, property_id, ordinal, name, value_list) VALUES (?, ?, ?, ?, ?)`,
				param.ID, param.PropertyID, param.Ordinal, param.Name, storage.JoinParamValues(param.Values)); err != nil {
				return apperr.Wrap(apperr.Database, err, "insert parameter").Retry()
			}
		}

		newRevision, err := bumpCollectionRevision(ctx, tx, req.CollectionID)
		if err != nil {
			return err
		}

		var instanceID string
		err = tx.QueryRowContext(ctx, `SELECT id FROM dav_instance WHERE collection_id = ? AND slug = ? AND deleted_at IS NULL`,
			req.CollectionID, req.Slug).Scan(&instanceID)
		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx, `
				UPDATE dav_instance SET entity_id = ?, content_type = ?, etag = ?, sync_revision = ?,
					last_modified = ?, schedule_tag = ? WHERE id = ?`,
				req.Tree.Entity.ID, req.ContentType, req.ETag, newRevision, now, req.ScheduleTag, instanceID); err != nil {
				return apperr.Wrap(apperr.Database, err, "update instance").Retry()
			}
		case errors.Is(err, sql.ErrNoRows):
			instanceID = uuid.NewString()
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO dav_instance
					(id, collection_id, entity_id, content_type, etag, sync_revision, last_modified, slug, schedule_tag, deleted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
				instanceID, req.CollectionID, req.Tree.Entity.ID, req.ContentType, req.ETag, newRevision, now, req.Slug, req.ScheduleTag); err != nil {
				return apperr.Wrap(apperr.Database, err, "insert instance").Retry()
			}
		default:
			return apperr.Wrap(apperr.Database, err, "lookup instance for put").Retry()
		}

		result = model.Instance{
			ID: instanceID, CollectionID: req.CollectionID, EntityID: req.Tree.Entity.ID,
			ContentType: req.ContentType, ETag: req.ETag, SyncRevision: newRevision,
			LastModified: now, Slug: req.Slug, ScheduleTag: req.ScheduleTag,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func deleteEntitySubtree(ctx context.Context, tx *sql.Tx, entityID string) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM dav_parameter WHERE property_id IN (
			SELECT p.id FROM dav_property p JOIN dav_component c ON c.id = p.component_id WHERE c.entity_id = ?)`,
		entityID); err != nil {
		return apperr.Wrap(apperr.Database, err, "delete parameters").Retry()
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM dav_property WHERE component_id IN (SELECT id FROM dav_component WHERE entity_id = ?)`, entityID); err != nil {
		return apperr.Wrap(apperr.Database, err, "delete properties").Retry()
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM dav_component WHERE entity_id = ?`, entityID); err != nil {
		return apperr.Wrap(apperr.Database, err, "delete components").Retry()
	}
	return nil
}

func bumpCollectionRevision(ctx context.Context, tx *sql.Tx, collectionID string) (int64, error) {
	if _, err := tx.ExecContext(ctx, `UPDATE dav_collection SET sync_revision = sync_revision + 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), collectionID); err != nil {
		return 0, apperr.Wrap(apperr.Database, err, "bump collection revision").Retry()
	}
	var revision int64
	if err := tx.QueryRowContext(ctx, `SELECT sync_revision FROM dav_collection WHERE id = ?`, collectionID).Scan(&revision); err != nil {
		return 0, apperr.Wrap(apperr.Database, err, "read bumped revision").Retry()
	}
	return revision, nil
}

func (s *Store) DeleteInstance(ctx context.Context, collectionID, slug string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var inst model.Instance
		err := tx.QueryRowContext(ctx, `
			SELECT id, entity_id, etag FROM dav_instance WHERE collection_id = ? AND slug = ? AND deleted_at IS NULL`,
			collectionID, slug).Scan(&inst.ID, &inst.EntityID, &inst.ETag)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFoundf("instance not found: collection_id=%s slug=%q", collectionID, slug)
		}
		if err != nil {
			return apperr.Wrap(apperr.Database, err, "lookup instance for delete").Retry()
		}

		now := time.Now().UTC()
		revision, err := bumpCollectionRevision(ctx, tx, collectionID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE dav_instance SET deleted_at = ?, sync_revision = ? WHERE id = ?`,
			now, revision, inst.ID); err != nil {
			return apperr.Wrap(apperr.Database, err, "soft delete instance").Retry()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dav_tombstone (id, collection_id, entity_id, sync_revision, deleted_at, last_etag, logical_uid, slugs)
			VALUES (?, ?, ?, ?, ?, ?, NULL, ?)`,
			uuid.NewString(), collectionID, inst.EntityID, revision, now, inst.ETag, storage.JoinSlugs([]string{slug})); err != nil {
			return apperr.Wrap(apperr.Database, err, "insert tombstone").Retry()
		}
		return nil
	})
}

func (s *Store) CopyInstance(ctx context.Context, srcInstanceID, destCollectionID, destSlug string, sameOwner bool) (*model.Instance, error) {
	var result model.Instance
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var src model.Instance
		var scheduleTag sql.NullString
		if err := tx.QueryRowContext(ctx, `
			SELECT id, collection_id, entity_id, content_type, etag, slug, schedule_tag
			FROM dav_instance WHERE id = ? AND deleted_at IS NULL`, srcInstanceID).
			Scan(&src.ID, &src.CollectionID, &src.EntityID, &src.ContentType, &src.ETag, &src.Slug, &scheduleTag); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFoundf("instance not found: %s", srcInstanceID)
			}
			return apperr.Wrap(apperr.Database, err, "lookup source instance").Retry()
		}

		destEntityID := src.EntityID
		if !sameOwner {
			tree, err := s.GetEntityTree(ctx, src.EntityID)
			if err != nil {
				return err
			}
			cloned, err := cloneTreeTx(ctx, tx, *tree)
			if err != nil {
				return err
			}
			destEntityID = cloned
		}

		now := time.Now().UTC()
		revision, err := bumpCollectionRevision(ctx, tx, destCollectionID)
		if err != nil {
			return err
		}
		newID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dav_instance
				(id, collection_id, entity_id, content_type, etag, sync_revision, last_modified, slug, schedule_tag, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			newID, destCollectionID, destEntityID, src.ContentType, src.ETag, revision, now, destSlug, scheduleTag); err != nil {
			return apperr.Wrap(apperr.Database, err, "insert copied instance").Retry()
		}
		result = model.Instance{
			ID: newID, CollectionID: destCollectionID, EntityID: destEntityID, ContentType: src.ContentType,
			ETag: src.ETag, SyncRevision: revision, LastModified: now, Slug: destSlug,
		}
		if scheduleTag.Valid {
			result.ScheduleTag = &scheduleTag.String
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func cloneTreeTx(ctx context.Context, tx *sql.Tx, tree storage.EntityTree) (string, error) {
	now := time.Now().UTC()
	newEntityID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dav_entity (id, type, logical_uid, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, NULL)`, newEntityID, string(tree.Entity.Type), tree.Entity.LogicalUID, now, now); err != nil {
		return "", apperr.Wrap(apperr.Database, err, "insert cloned entity").Retry()
	}

	componentIDMap := make(map[string]string, len(tree.Components))
	for _, c := range tree.Components {
		componentIDMap[c.ID] = uuid.NewString()
	}
	for _, c := range tree.Components {
		var parentID *string
		if c.ParentID != nil {
			if mapped, ok := componentIDMap[*c.ParentID]; ok {
				parentID = &mapped
			}
		}
		newID := componentIDMap[c.ID]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dav_component (id, entity_id, parent_id, ordinal, name) VALUES (?, ?, ?, ?, ?)`,
			newID, newEntityID, parentID, c.Ordinal, c.Name); err != nil {
			return "", apperr.Wrap(apperr.Database, err, "insert cloned component").Retry()
		}
	}

	propertyIDMap := make(map[string]string, len(tree.Properties))
	for _, p := range tree.Properties {
		propertyIDMap[p.ID] = uuid.NewString()
	}
	for _, p := range tree.Properties {
		newID := propertyIDMap[p.ID]
		newComponentID := componentIDMap[p.ComponentID]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dav_property
				(id, component_id, ordinal, name, prop_group, value_kind, text_value, int_value,
				 float_value, bool_value, date_value, date_is_utc, bytes_value, json_value)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			newID, newComponentID, p.Ordinal, p.Name, p.Group, string(p.ValueKind), p.TextValue, p.IntValue,
			p.FloatValue, p.BoolValue, p.DateValue, p.DateIsUTC, p.BytesValue, p.JSONValue); err != nil {
			return "", apperr.Wrap(apperr.Database, err, "insert cloned property").Retry()
		}
	}

	for _, param := range tree.Parameters {
		newPropertyID := propertyIDMap[param.PropertyID]
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dav_parameter (id, property_id, ordinal, name, value_list) VALUES (?, ?, ?, ?, ?)`,
			uuid.NewString(), newPropertyID, param.Ordinal, param.Name, storage.JoinParamValues(param.Values)); err != nil {
			return "", apperr.Wrap(apperr.Database, err, "insert cloned parameter").Retry()
		}
	}

	return newEntityID, nil
}

func (s *Store) MoveInstance(ctx context.Context, srcInstanceID, destCollectionID, destSlug string) (*model.Instance, error) {
	var result model.Instance
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var src model.Instance
		var scheduleTag sql.NullString
		if err := tx.QueryRowContext(ctx, `
			SELECT id, collection_id, entity_id, content_type, etag, slug, schedule_tag
			FROM dav_instance WHERE id = ? AND deleted_at IS NULL`, srcInstanceID).
			Scan(&src.ID, &src.CollectionID, &src.EntityID, &src.ContentType, &src.ETag, &src.Slug, &scheduleTag); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFoundf("instance not found: %s", srcInstanceID)
			}
			return apperr.Wrap(apperr.Database, err, "lookup source instance").Retry()
		}

		now := time.Now().UTC()
		srcRevision, err := bumpCollectionRevision(ctx, tx, src.CollectionID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE dav_instance SET deleted_at = ?, sync_revision = ? WHERE id = ?`,
			now, srcRevision, src.ID); err != nil {
			return apperr.Wrap(apperr.Database, err, "soft delete source instance").Retry()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dav_tombstone (id, collection_id, entity_id, sync_revision, deleted_at, last_etag, logical_uid, slugs)
			VALUES (?, ?, ?, ?, ?, ?, NULL, ?)`,
			uuid.NewString(), src.CollectionID, src.EntityID, srcRevision, now, src.ETag, storage.JoinSlugs([]string{src.Slug})); err != nil {
			return apperr.Wrap(apperr.Database, err, "insert move tombstone").Retry()
		}

		destRevision, err := bumpCollectionRevision(ctx, tx, destCollectionID)
		if err != nil {
			return err
		}
		newID := uuid.NewString()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO dav_instance
				(id, collection_id, entity_id, content_type, etag, sync_revision, last_modified, slug, schedule_tag, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
			newID, destCollectionID, src.EntityID, src.ContentType, src.ETag, destRevision, now, destSlug, scheduleTag); err != nil {
			return apperr.Wrap(apperr.Database, err, "insert moved instance").Retry()
		}
		result = model.Instance{
			ID: newID, CollectionID: destCollectionID, EntityID: src.EntityID, ContentType: src.ContentType,
			ETag: src.ETag, SyncRevision: destRevision, LastModified: now, Slug: destSlug,
		}
		if scheduleTag.Valid {
			result.ScheduleTag = &scheduleTag.String
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Store) ListLiveSince(ctx context.Context, collectionID string, sinceRevision int64) ([]model.Instance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_id, entity_id, content_type, etag, sync_revision, last_modified, slug, schedule_tag, deleted_at
		FROM dav_instance WHERE collection_id = ? AND sync_revision > ? AND deleted_at IS NULL ORDER BY sync_revision`,
		collectionID, sinceRevision)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list live instances since").Retry()
	}
	defer rows.Close()
	return scanInstances(rows)
}

func (s *Store) ListTombstonesSince(ctx context.Context, collectionID string, sinceRevision int64) ([]model.Tombstone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_id, entity_id, sync_revision, deleted_at, last_etag, logical_uid, slugs
		FROM dav_tombstone WHERE collection_id = ? AND sync_revision > ? ORDER BY sync_revision`, collectionID, sinceRevision)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "list tombstones since").Retry()
	}
	defer rows.Close()

	var out []model.Tombstone
	for rows.Next() {
		var t model.Tombstone
		var entityID, logicalUID sql.NullString
		var slugs string
		if err := rows.Scan(&t.ID, &t.CollectionID, &entityID, &t.SyncRevision, &t.DeletedAt, &t.LastETag, &logicalUID, &slugs); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan tombstone").Retry()
		}
		if entityID.Valid {
			t.EntityID = &entityID.String
		}
		if logicalUID.Valid {
			t.LogicalUID = &logicalUID.String
		}
		t.Slugs = storage.SplitSlugs(slugs)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) OldestSurvivingTombstoneRevision(ctx context.Context, collectionID string) (*int64, error) {
	var revision sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MIN(sync_revision) FROM dav_tombstone WHERE collection_id = ?`, collectionID).Scan(&revision)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "read oldest tombstone revision").Retry()
	}
	if !revision.Valid {
		return nil, nil
	}
	return &revision.Int64, nil
}

func (s *Store) PurgeTombstonesOlderThan(ctx context.Context, collectionID string, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dav_tombstone WHERE collection_id = ? AND deleted_at < ?`, collectionID, cutoff)
	if err != nil {
		return 0, apperr.Wrap(apperr.Database, err, "purge tombstones").Retry()
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperr.Wrap(apperr.Database, err, "read purge row count").Retry()
	}
	return int(n), nil
}

func (s *Store) UpsertCalIndex(ctx context.Context, rows []model.CalIndex) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, r := range rows {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cal_index
					(entity_id, component_id, component_type, uid, recurrence_id_utc, dtstart_utc, dtend_utc,
					 all_day, rrule_text, metadata, updated_at, deleted_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (entity_id, component_id) DO UPDATE SET
					component_type = excluded.component_type, uid = excluded.uid,
					recurrence_id_utc = excluded.recurrence_id_utc, dtstart_utc = excluded.dtstart_utc,
					dtend_utc = excluded.dtend_utc, all_day = excluded.all_day, rrule_text = excluded.rrule_text,
					metadata = excluded.metadata, updated_at = excluded.updated_at, deleted_at = excluded.deleted_at`,
				r.EntityID, r.ComponentID, r.ComponentType, r.UID, r.RecurrenceIDUTC, r.DTStartUTC, r.DTEndUTC,
				r.AllDay, r.RRuleText, r.Metadata, r.UpdatedAt, nullTime(r.DeletedAt)); err != nil {
				return apperr.Wrap(apperr.Database, err, "upsert cal_index row").Retry()
			}
		}
		return nil
	})
}

func (s *Store) QueryCalIndexByWindow(ctx context.Context, collectionID string, componentType string, start, end *time.Time) ([]model.CalIndex, error) {
	query := `
		SELECT ci.entity_id, ci.component_id, ci.component_type, ci.uid, ci.recurrence_id_utc, ci.dtstart_utc,
		       ci.dtend_utc, ci.all_day, ci.rrule_text, ci.metadata, ci.updated_at, ci.deleted_at
		FROM cal_index ci
		JOIN dav_instance di ON di.entity_id = ci.entity_id AND di.deleted_at IS NULL
		WHERE di.collection_id = ? AND ci.component_type = ? AND ci.deleted_at IS NULL`
	args := []any{collectionID, componentType}
	if start != nil {
		query += ` AND (ci.dtend_utc IS NULL OR ci.dtend_utc >= ?)`
		args = append(args, *start)
	}
	if end != nil {
		query += ` AND (ci.dtstart_utc IS NULL OR ci.dtstart_utc <= ?)`
		args = append(args, *end)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "query cal_index").Retry()
	}
	defer rows.Close()

	var out []model.CalIndex
	for rows.Next() {
		var r model.CalIndex
		var uid, rruleText sql.NullString
		var recurrenceID, dtstart, dtend, deletedAt sql.NullTime
		var allDay sql.NullBool
		if err := rows.Scan(&r.EntityID, &r.ComponentID, &r.ComponentType, &uid, &recurrenceID, &dtstart, &dtend,
			&allDay, &rruleText, &r.Metadata, &r.UpdatedAt, &deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan cal_index row").Retry()
		}
		if uid.Valid {
			r.UID = &uid.String
		}
		if rruleText.Valid {
			r.RRuleText = &rruleText.String
		}
		if recurrenceID.Valid {
			r.RecurrenceIDUTC = &recurrenceID.Time
		}
		if dtstart.Valid {
			r.DTStartUTC = &dtstart.Time
		}
		if dtend.Valid {
			r.DTEndUTC = &dtend.Time
		}
		if allDay.Valid {
			r.AllDay = &allDay.Bool
		}
		r.DeletedAt = fromNullTime(deletedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCardIndex(ctx context.Context, row model.CardIndex) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO card_index (entity_id, uid, fn, data, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_id) DO UPDATE SET
			uid = excluded.uid, fn = excluded.fn, data = excluded.data,
			updated_at = excluded.updated_at, deleted_at = excluded.deleted_at`,
		row.EntityID, row.UID, row.FN, row.Data, row.UpdatedAt, nullTime(row.DeletedAt))
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "upsert card_index row").Retry()
	}
	return nil
}

func (s *Store) QueryCardIndex(ctx context.Context, collectionID string) ([]model.CardIndex, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ci.entity_id, ci.uid, ci.fn, ci.data, ci.updated_at, ci.deleted_at
		FROM card_index ci
		JOIN dav_instance di ON di.entity_id = ci.entity_id AND di.deleted_at IS NULL
		WHERE di.collection_id = ? AND ci.deleted_at IS NULL`, collectionID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "query card_index").Retry()
	}
	defer rows.Close()

	var out []model.CardIndex
	for rows.Next() {
		var r model.CardIndex
		var uid, fn sql.NullString
		var deletedAt sql.NullTime
		if err := rows.Scan(&r.EntityID, &uid, &fn, &r.Data, &r.UpdatedAt, &deletedAt); err != nil {
			return nil, apperr.Wrap(apperr.Database, err, "scan card_index row").Retry()
		}
		if uid.Valid {
			r.UID = &uid.String
		}
		if fn.Valid {
			r.FN = &fn.String
		}
		r.DeletedAt = fromNullTime(deletedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) GetTimezone(ctx context.Context, tzid string) (string, bool, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT vtimezone_text FROM cal_timezone WHERE tzid = ?`, tzid).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Wrap(apperr.Database, err, "get timezone").Retry()
	}
	return text, true, nil
}

func (s *Store) PutTimezone(ctx context.Context, entry model.TimezoneCacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cal_timezone (tzid, vtimezone_text) VALUES (?, ?)
		ON CONFLICT (tzid) DO UPDATE SET vtimezone_text = excluded.vtimezone_text`,
		entry.TZID, entry.VTimezoneText)
	if err != nil {
		return apperr.Wrap(apperr.Database, err, "put timezone").Retry()
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
