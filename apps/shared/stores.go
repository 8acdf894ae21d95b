// Package shared holds the wiring used by both the API and the admin CLI.
package shared

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/chat"
	"github.com/mozedu/mozedu/core/chatbot"
	"github.com/mozedu/mozedu/core/school"
	"github.com/mozedu/mozedu/core/user"
	"github.com/mozedu/mozedu/storage/database"
	"github.com/mozedu/mozedu/storage/database/inmem"
	"github.com/mozedu/mozedu/storage/database/sqlxrepos"
	"github.com/mozedu/mozedu/storage/dynamo"
)

// Chat stores
const (
	StorePostgres = "postgres"
	StoreDynamoDB = "dynamodb" // users & school data stay in postgres
	StoreMemory   = "memory"
)

const (
	DemoUsername = "demo"
	DemoPassword = "Mozedu#Demo1"
)

// Stores groups the repositories selected by the config.
type Stores struct {
	DB     *sqlx.DB // nil with the memory store
	Users  user.Repository
	School school.Repository
	Chat   chat.Repository

	mem *inmemdb.DB
}

func (s *Stores) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// OpenStores opens the repositories of `conf.Chat.Store`.
// The postgres database is created and migrated when needed.
func OpenStores(ctx context.Context, conf *core.Config) (*Stores, error) {
	switch conf.Chat.Store {
	case StoreMemory:
		db := inmemdb.Open()
		return &Stores{
			Users:  inmemdb.NewUserRepository(db),
			School: inmemdb.NewSchoolRepository(db),
			Chat:   inmemdb.NewChatRepository(db),
			mem:    db,
		}, nil

	case StorePostgres, StoreDynamoDB, "":
		db, err := OpenDB(conf)
		if err != nil {
			return nil, err
		}
		stores := &Stores{
			DB:     db,
			Users:  sqlxrepos.NewUserRepository(db),
			School: sqlxrepos.NewSchoolRepository(db),
			Chat:   sqlxrepos.NewChatRepository(db),
		}
		if conf.Chat.Store == StoreDynamoDB {
			if stores.Chat, err = openDynamoChat(ctx, conf); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return stores, nil

	default:
		return nil, errors.Errorf("unknown chat store %q", conf.Chat.Store)
	}
}

// OpenDB creates, opens and migrates the postgres database.
func OpenDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func openDynamoChat(ctx context.Context, conf *core.Config) (chat.Repository, error) {
	var opts []func(*config.LoadOptions) error
	if conf.Chat.AWSRegion != "" {
		opts = append(opts, config.WithRegion(conf.Chat.AWSRegion))
	}
	awsConf, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "loading aws config")
	}
	return dynamostore.NewChatRepository(dynamodb.NewFromConfig(awsConf), conf.Chat.DynamoTable)
}

// SeedDemo creates the demo parent and their school data in the memory store.
// It does nothing with the other stores.
func (s *Stores) SeedDemo(ctx context.Context, usrSvc *user.Service) (user.User, bool, error) {
	if s.mem == nil {
		return user.User{}, false, nil
	}
	parent, err := usrSvc.UpdateOrCreate(ctx, user.User{
		Name:     "Encarregado de educação",
		Username: DemoUsername,
		Roles:    []string{user.RoleParent},
	}, DemoPassword)
	if err != nil {
		return user.User{}, false, errors.Wrap(err, "creating demo parent")
	}

	repo := inmemdb.NewSchoolRepository(s.mem)
	rc := chatbot.SampleContext(time.Now().UTC())
	for _, child := range rc.Children {
		child.ID = ""
		child.ParentID = parent.ID
		repo.AddChild(child)
	}
	for _, ev := range rc.Events {
		ev.ID = ""
		repo.AddEvent(ev)
	}
	return parent, true, nil
}
