package core

import (
	"github.com/stake-plus/ibots/src/bots/bid"
	"github.com/stake-plus/ibots/src/bots/result"
)

// Handle rules per declared node type. They only depend on the type; the
// user-like and entry-like resolvers inspect the node itself.
var (
	ownRule    = func(t bid.EntityType) result.Rule { return result.Rule{Name: "bid", Type: result.Static(t), Path: []string{"id"}} }
	authorRule = result.Rule{Name: "user", Type: result.UserAt("user"), Path: []string{"user", "id"}}
	targetRule = result.Rule{Name: "target", Type: result.UserAt("target"), Path: []string{"target", "id"}}
	parentRule = result.Rule{Name: "parent", Type: result.EntryAt("parent"), Path: []string{"parent", "id"}}

	shapes = map[bid.EntityType][]result.Rule{
		bid.User:        {{Name: "bid", Type: result.UserAt(), Path: []string{"id"}}},
		bid.Person:      {ownRule(bid.Person)},
		bid.Bot:         {ownRule(bid.Bot)},
		bid.Nonprofit:   {ownRule(bid.Nonprofit)},
		bid.Donation:    {ownRule(bid.Donation), authorRule, targetRule},
		bid.Transaction: {ownRule(bid.Transaction), authorRule, targetRule},
		bid.News:        {ownRule(bid.News), authorRule},
		bid.Event:       {ownRule(bid.Event), authorRule},
		bid.Post:        {ownRule(bid.Post), authorRule},
		bid.Comment:     {ownRule(bid.Comment), authorRule, parentRule},
	}
)

// Rules returns the handle rules for a declared node type.
func Rules(t bid.EntityType) []result.Rule {
	return shapes[t]
}

func listOp(t bid.EntityType) string { return "query_" + string(t) + "_list" }
func nodeOp(t bid.EntityType) string { return "query_" + string(t) }
