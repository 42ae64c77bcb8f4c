package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/modelsmith/cardstore/internal/configs"
	"github.com/modelsmith/cardstore/internal/conversion"
	"github.com/modelsmith/cardstore/internal/objectstore"
	"github.com/modelsmith/cardstore/internal/repositories/sql/cards"
	"github.com/modelsmith/cardstore/pkg/api"
	"github.com/modelsmith/cardstore/pkg/infra"
	"github.com/modelsmith/cardstore/pkg/metric"
)

const (
	trainedModelKey  = "trained-model.bin"
	portableModelKey = "model.pmdl"
	metadataKey      = "metadata.json"
	contentsKey      = "contents.bin"
)

// registryTables maps a card type to the storage table segment of its
// artifact path `<table>/<repository>/<name>/v<version>`.
var registryTables = map[string]string{
	CardTypeModel: "model_registry",
	CardTypeData:  "data_registry",
	CardTypeRun:   "run_registry",
}

// Registry defines card registry operations
type Registry interface {
	Register(ctx context.Context, request RegisterRequest) (CardResponse, error)
	List(ctx context.Context, request ListRequest) (ListResponse, error)
	Load(ctx context.Context, uid string) (CardResponse, error)
	Update(ctx context.Context, uid string, request UpdateRequest) (CardResponse, error)
	Delete(ctx context.Context, uid string) error
	Repositories(ctx context.Context, cardType string) (NamesResponse, error)
	Names(ctx context.Context, cardType, repository string) (NamesResponse, error)
	ModelMetadata(ctx context.Context, uid string) (MetadataResponse, error)
}

type V1 struct {
	cards     cards.Repository
	storage   objectstore.Client
	converter *conversion.OnnxConverter
}

var registryHandler Registry

// InitV1RegistryHandler wires the registry handler from the initialized
// database connection and the environment configuration.
func InitV1RegistryHandler(config configs.Configs) Registry {
	if registryHandler == nil {
		conn, err := infra.SQL.GetConnection()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to get SQL connection")
		}
		sqlConn := conn.(*infra.SQLConnection)

		repo, err := cards.NewRepository(sqlConn)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create cards repository")
		}

		storage, err := objectstore.NewClient(context.Background(), config)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}

		converter := conversion.NewOnnxConverter(
			conversion.NewRegistry(),
			conversion.NewExporterSetFromConfig(config),
		)
		registryHandler = NewRegistryHandler(repo, storage, converter)
	}
	return registryHandler
}

// NewRegistryHandler creates a registry handler backed by the cards table,
// the configured blob store and the conversion orchestrator.
func NewRegistryHandler(repo cards.Repository, storage objectstore.Client, converter *conversion.OnnxConverter) Registry {
	return &V1{
		cards:     repo,
		storage:   storage,
		converter: converter,
	}
}

// Register creates a new card: resolves its version, runs model conversion
// when requested, uploads artifacts and persists the record.
func (h *V1) Register(ctx context.Context, request RegisterRequest) (CardResponse, error) {
	table, ok := registryTables[request.CardType]
	if !ok {
		return CardResponse{}, api.NewBadRequestError(fmt.Sprintf("unknown card type %q", request.CardType))
	}
	if request.Name == "" || request.Repository == "" {
		return CardResponse{}, api.NewBadRequestError("name and repository are required")
	}
	if request.CardType == CardTypeModel && request.Model == nil {
		return CardResponse{}, api.NewBadRequestError("model payload is required for model cards")
	}
	if request.CardType != CardTypeModel && request.Model != nil {
		return CardResponse{}, api.NewBadRequestError(fmt.Sprintf("model payload not allowed for %s cards", request.CardType))
	}

	uid := request.Uid
	if uid == "" {
		uid = uuid.NewString()
	} else if _, err := h.cards.GetByUid(uid); err == nil {
		return CardResponse{}, api.NewConflictError(fmt.Sprintf("card with uid %s already exists", uid))
	}

	version, err := h.resolveVersion(request)
	if err != nil {
		return CardResponse{}, err
	}

	basePath := fmt.Sprintf("%s/%s/%s/v%s", table, request.Repository, request.Name, version)

	record := &cards.Table{
		Uid:         uid,
		Name:        request.Name,
		Repository:  request.Repository,
		Version:     version,
		CardType:    request.CardType,
		ArtifactUri: basePath,
		DatacardUid: request.DatacardUid,
		RuncardUid:  request.RuncardUid,
	}
	if len(request.Tags) > 0 {
		raw, err := json.Marshal(request.Tags)
		if err != nil {
			return CardResponse{}, api.NewBadRequestError(err.Error())
		}
		record.Tags = raw
	}

	if request.CardType == CardTypeModel {
		if err := h.registerModel(ctx, request, record, basePath); err != nil {
			return CardResponse{}, err
		}
	} else if len(request.Contents) > 0 {
		if err := h.upload(ctx, basePath+"/"+contentsKey, request.Contents, "application/octet-stream"); err != nil {
			return CardResponse{}, err
		}
	}

	if err := h.cards.Create(record); err != nil {
		log.Error().Err(err).Str("uid", uid).Msg("failed to persist card")
		return CardResponse{}, api.NewInternalServerError(err.Error())
	}
	metric.Incr(metric.ApiRequestCount, metric.BuildTag(
		metric.NewTag(metric.TagCardType, request.CardType),
		metric.NewTag(metric.TagPath, "register"),
	))
	return CardResponse{Card: toCard(record)}, nil
}

// registerModel runs conversion for a model card and uploads trained model,
// portable model and metadata under the card's artifact path.
func (h *V1) registerModel(ctx context.Context, request RegisterRequest, record *cards.Table, basePath string) error {
	iface, err := request.Model.Interface()
	if err != nil {
		return api.NewBadRequestError(err.Error())
	}
	record.ModelClass = iface.ModelClass
	record.ModelType = iface.ModelType
	record.InterfaceName = iface.InterfaceName

	var ret *conversion.ModelReturn
	if conversion.ShouldConvert(request.Model.ToOnnx) {
		ret, err = h.converter.Convert(ctx, iface)
	} else {
		ret, err = conversion.NewMetadataCreator(iface).GetModelMetadata()
	}
	if err != nil {
		log.Error().Err(err).Str("model_class", iface.ModelClass).Msg("model conversion failed")
		return api.NewBadRequestError(err.Error())
	}

	if len(request.Model.TrainedModel) > 0 {
		record.TrainedUri = basePath + "/" + trainedModelKey
		if err := h.upload(ctx, record.TrainedUri, request.Model.TrainedModel, "application/octet-stream"); err != nil {
			return err
		}
	}
	if ret.OnnxModel != nil {
		payload, err := ret.OnnxModel.Bytes()
		if err != nil {
			return api.NewInternalServerError(err.Error())
		}
		record.PortableUri = basePath + "/" + portableModelKey
		if err := h.upload(ctx, record.PortableUri, payload, "application/octet-stream"); err != nil {
			return err
		}
	}

	meta := conversion.CreateMetadata(
		request.Name, request.Repository, record.Version,
		record.TrainedUri, record.PortableUri, iface, ret,
	)
	raw, err := json.Marshal(meta)
	if err != nil {
		return api.NewInternalServerError(err.Error())
	}
	return h.upload(ctx, basePath+"/"+metadataKey, raw, "application/json")
}

func (h *V1) upload(ctx context.Context, key string, data []byte, contentType string) error {
	start := time.Now()
	err := h.storage.Upload(ctx, key, data, contentType)
	tags := metric.BuildTag(metric.NewTag(metric.TagStorageBackend, h.storage.Backend()))
	metric.Incr(metric.ArtifactUploadCount, tags)
	metric.Timing(metric.ArtifactUploadLatency, time.Since(start), tags)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("artifact upload failed")
		return api.NewInternalServerError(err.Error())
	}
	return nil
}

// resolveVersion returns the explicit request version after validating it, or
// bumps the highest stored version by the requested component (minor when
// unspecified). The first version of a card is 1.0.0.
func (h *V1) resolveVersion(request RegisterRequest) (string, error) {
	stored, err := h.cards.Versions(request.Name, request.Repository)
	if err != nil {
		return "", api.NewInternalServerError(err.Error())
	}

	if request.Version != "" {
		v, err := semver.NewVersion(request.Version)
		if err != nil {
			return "", api.NewBadRequestError(fmt.Sprintf("invalid version %q: %v", request.Version, err))
		}
		for _, s := range stored {
			if s == v.String() {
				return "", api.NewConflictError(fmt.Sprintf("version %s already exists for %s/%s", v, request.Repository, request.Name))
			}
		}
		return v.String(), nil
	}

	versions := make([]*semver.Version, 0, len(stored))
	for _, s := range stored {
		v, err := semver.NewVersion(s)
		if err != nil {
			log.Warn().Str("version", s).Msg("skipping unparsable stored version")
			continue
		}
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return "1.0.0", nil
	}
	sort.Sort(semver.Collection(versions))
	latest := versions[len(versions)-1]

	var next semver.Version
	switch request.VersionType {
	case VersionMajor:
		next = latest.IncMajor()
	case VersionPatch:
		next = latest.IncPatch()
	case VersionMinor, "":
		next = latest.IncMinor()
	default:
		return "", api.NewBadRequestError(fmt.Sprintf("unknown version type %q", request.VersionType))
	}
	return next.String(), nil
}

// List retrieves cards matching filters. A uid filter short-circuits to a
// single lookup.
func (h *V1) List(_ context.Context, request ListRequest) (ListResponse, error) {
	if request.Uid != "" {
		record, err := h.cards.GetByUid(request.Uid)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ListResponse{Data: []Card{}}, nil
		}
		if err != nil {
			return ListResponse{}, api.NewInternalServerError(err.Error())
		}
		return ListResponse{Data: []Card{toCard(record)}}, nil
	}

	records, err := h.cards.List(cards.Filter{
		Name:       request.Name,
		Repository: request.Repository,
		Version:    request.Version,
		CardType:   request.CardType,
		Limit:      request.Limit,
	})
	if err != nil {
		return ListResponse{}, api.NewInternalServerError(err.Error())
	}
	response := ListResponse{Data: make([]Card, 0, len(records))}
	for i := range records {
		response.Data = append(response.Data, toCard(&records[i]))
	}
	return response, nil
}

// Load retrieves a single card by uid.
func (h *V1) Load(_ context.Context, uid string) (CardResponse, error) {
	record, err := h.cards.GetByUid(uid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CardResponse{}, api.NewNotFoundError(fmt.Sprintf("card %s not found", uid))
	}
	if err != nil {
		return CardResponse{}, api.NewInternalServerError(err.Error())
	}
	return CardResponse{Card: toCard(record)}, nil
}

// Update replaces a card's mutable fields (tags and lineage uids).
func (h *V1) Update(_ context.Context, uid string, request UpdateRequest) (CardResponse, error) {
	record, err := h.cards.GetByUid(uid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return CardResponse{}, api.NewNotFoundError(fmt.Sprintf("card %s not found", uid))
	}
	if err != nil {
		return CardResponse{}, api.NewInternalServerError(err.Error())
	}

	if request.Tags != nil {
		raw, err := json.Marshal(request.Tags)
		if err != nil {
			return CardResponse{}, api.NewBadRequestError(err.Error())
		}
		record.Tags = raw
	}
	if request.DatacardUid != "" {
		record.DatacardUid = request.DatacardUid
	}
	if request.RuncardUid != "" {
		record.RuncardUid = request.RuncardUid
	}
	if err := h.cards.Update(record); err != nil {
		return CardResponse{}, api.NewInternalServerError(err.Error())
	}
	return CardResponse{Card: toCard(record)}, nil
}

// Delete removes a card record and every artifact under its storage path.
func (h *V1) Delete(ctx context.Context, uid string) error {
	record, err := h.cards.GetByUid(uid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return api.NewNotFoundError(fmt.Sprintf("card %s not found", uid))
	}
	if err != nil {
		return api.NewInternalServerError(err.Error())
	}
	keys, err := h.storage.List(ctx, record.ArtifactUri+"/")
	if err != nil {
		return api.NewInternalServerError(err.Error())
	}
	for _, key := range keys {
		if err := h.storage.Delete(ctx, key); err != nil {
			log.Error().Err(err).Str("uid", uid).Str("key", key).Msg("failed to delete card artifact")
			return api.NewInternalServerError(err.Error())
		}
	}
	if err := h.cards.Delete(uid); err != nil {
		return api.NewInternalServerError(err.Error())
	}
	return nil
}

// Repositories lists the distinct repositories holding cards of a type.
func (h *V1) Repositories(_ context.Context, cardType string) (NamesResponse, error) {
	repositories, err := h.cards.Repositories(cardType)
	if err != nil {
		return NamesResponse{}, api.NewInternalServerError(err.Error())
	}
	return NamesResponse{Data: repositories}, nil
}

// Names lists the distinct card names within a repository.
func (h *V1) Names(_ context.Context, cardType, repository string) (NamesResponse, error) {
	names, err := h.cards.Names(cardType, repository)
	if err != nil {
		return NamesResponse{}, api.NewInternalServerError(err.Error())
	}
	return NamesResponse{Data: names}, nil
}

// ModelMetadata resolves a model card and returns its stored metadata document.
func (h *V1) ModelMetadata(ctx context.Context, uid string) (MetadataResponse, error) {
	record, err := h.cards.GetByUid(uid)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MetadataResponse{}, api.NewNotFoundError(fmt.Sprintf("card %s not found", uid))
	}
	if err != nil {
		return MetadataResponse{}, api.NewInternalServerError(err.Error())
	}
	if record.CardType != CardTypeModel {
		return MetadataResponse{}, api.NewBadRequestError(fmt.Sprintf("card %s is a %s card, not a model card", uid, record.CardType))
	}
	raw, err := h.storage.Download(ctx, record.ArtifactUri+"/"+metadataKey)
	if err != nil {
		return MetadataResponse{}, api.NewInternalServerError(err.Error())
	}
	return MetadataResponse{Data: raw}, nil
}

func toCard(record *cards.Table) Card {
	card := Card{
		Uid:           record.Uid,
		Name:          record.Name,
		Repository:    record.Repository,
		Version:       record.Version,
		CardType:      record.CardType,
		ArtifactUri:   record.ArtifactUri,
		TrainedUri:    record.TrainedUri,
		PortableUri:   record.PortableUri,
		ModelClass:    record.ModelClass,
		ModelType:     record.ModelType,
		InterfaceName: record.InterfaceName,
		DatacardUid:   record.DatacardUid,
		RuncardUid:    record.RuncardUid,
		CreatedAt:     record.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     record.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if len(record.Tags) > 0 {
		var tags map[string]string
		if err := json.Unmarshal(record.Tags, &tags); err == nil {
			card.Tags = tags
		}
	}
	return card
}
