// Package plan defines the subscription plan catalog: the closed set of metered
// actions, each plan's per-action limits, and pure lookups over them.
//
// Plans are configuration data loaded once at process start, either from the
// built-in DefaultPlans or from a YAML file:
//
//	plans:
//	  - id: free
//	    name: Free
//	    tier: free
//	    position: 0
//	    limits:
//	      forms: 3
//	      responses: 100
//	      storage: 100
//	      apiCalls: 0
//	      aiGenerations: 10
//	      teamMembers: 1
//	  - id: pro
//	    name: Pro
//	    tier: pro
//	    position: 1
//	    limits:
//	      forms: unlimited
//	      ...
//
// NewCatalog fails fast when any plan is missing a limit for any Action, so the
// enforcement engine never meets an unconfigured action at request time.
//
//	catalog, err := plan.LoadCatalog(ctx, plan.NewYAMLSource("plans.yaml"))
//	if err != nil {
//		log.Fatal(err)
//	}
//	catalog.IsUpgrade("free", "pro") // true
//	catalog.Recommend(map[plan.Action]int64{plan.ActionForms: 12}) // pro
package plan
