// Package strata provides a path-addressed reactive state container: a
// wrapper around an arbitrary nested value that notifies subscribers
// whenever anything reachable through a dot/bracket path changes, is added,
// or is removed. It is the state engine behind a UI-binding layer; the layer
// that attaches state to a concrete UI is an external collaborator.
//
// # Stores
//
// A Store binds a name to a reactive wrapper tree:
//
//	store, _ := strata.New("app", map[string]any{
//	    "user":  map[string]any{"name": "Ada"},
//	    "items": []any{"a", "b", "c"},
//	})
//
//	v, _ := store.Get("user.name")      // "Ada"
//	_ = store.Set("user.name", "Grace") // notifies user.name, then user
//
// # Subscriptions
//
// Subscriptions are compositional: a listener can observe at any
// granularity without pre-declaring dependencies. A change fans out to root
// listeners, exact-path listeners, descendants (a listener on "user.name"
// fires when "user" is replaced wholesale) and ancestors (a listener on
// "user" fires when "user.name" changes), in that order:
//
//	unsubscribe, _ := store.Subscribe("items", func(change any) {
//	    // change is a *Node here; leaf changes deliver a StateValue
//	})
//	defer unsubscribe()
//
// # Composition
//
// Constructing a store over another store — or over a nested wrapper of one
// — shares state and subscriptions by reference instead of copying:
//
//	clone, _ := strata.New("clone", store)          // same tree, same manager
//	user, _ := store.Get("user")
//	scoped, _ := strata.New("user", user.(*strata.Node)) // scoped to "user"
//
// # Concurrency
//
// Mutation and notification are synchronous and callback-driven: a Set
// returns only after every matching subscriber has run. Callbacks may
// themselves mutate the store re-entrantly; guarding against notification
// cycles is the caller's responsibility. Internal locks protect structure
// only and are never held while callbacks run.
package strata
