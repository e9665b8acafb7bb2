// Package mongo provides a MongoDB session persistence backend on the official driver.
//
// Sessions are stored as one document per identifier in the collection named by
// the store configuration, with an indexed numeric expiry field so the backend
// expiry sweep is a single DeleteMany range filter.
//
//	import mongodb "github.com/sessionkit/sessionkit/integration/database/mongo"
//
//	client, err := mongo.Connect(options.Client().ApplyURI(os.Getenv("MONGODB_URI")))
//	if err != nil {
//		log.Fatal(err)
//	}
//	store := session.New(mongodb.New(client.Database("app")))
//	if err := store.Initiate(ctx); err != nil {
//		log.Fatal(err)
//	}
package mongo
