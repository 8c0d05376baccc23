package perf

import (
	"fmt"
	"testing"
	"time"

	"github.com/civitas-platform/civitas/internal/authz"
)

func buildSubject(groupCount, rightsPerRole int) authz.Subject {
	memberships := make([]authz.Membership, 0, groupCount)
	for g := 0; g < groupCount; g++ {
		groupID := fmt.Sprintf("G%d", g)
		rights := make([]authz.ActionRight, 0, rightsPerRole)
		for i := 0; i < rightsPerRole; i++ {
			rights = append(rights, authz.ActionRight{
				ID:       fmt.Sprintf("AR%d-%d", g, i),
				Resource: authz.ResourceEvents,
				Action:   authz.ActionUpdate,
				Group:    &authz.ScopeRef{ID: groupID},
			})
		}
		memberships = append(memberships, authz.Membership{
			ID:     fmt.Sprintf("M%d", g),
			Status: authz.MembershipActive,
			Group: &authz.Group{
				ID:    groupID,
				Roles: []authz.Role{{ID: fmt.Sprintf("R%d", g), Name: "organizer", ActionRights: rights}},
			},
		})
	}
	return authz.Subject{UserID: "U1", Authenticated: true, Memberships: memberships}
}

func BenchmarkResolverCan(b *testing.B) {
	resolver := authz.NewResolver(authz.Policy{})
	sub := buildSubject(20, 10)
	obj := authz.Object{Resource: authz.ResourceEvents, ID: "E1", GroupID: "G19"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !resolver.Can(sub, obj, authz.ActionUpdate) {
			b.Fatal("expected grant")
		}
	}
}

func BenchmarkResolverCanView(b *testing.B) {
	resolver := authz.NewResolver(authz.Policy{})
	sub := buildSubject(20, 10)
	obj := authz.Object{Resource: authz.ResourceEvents, ID: "E1", GroupID: "G5", Visibility: authz.VisibilityPrivate}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		resolver.CanView(sub, obj)
	}
}

// Evaluation must stay cheap enough to run on every request without caching.
func TestResolverLatencyTarget(t *testing.T) {
	resolver := authz.NewResolver(authz.Policy{})
	sub := buildSubject(50, 20)
	obj := authz.Object{Resource: authz.ResourceEvents, ID: "E1", GroupID: "G49"}

	const runs = 1000
	start := time.Now()
	for i := 0; i < runs; i++ {
		resolver.Can(sub, obj, authz.ActionUpdate)
	}
	perCall := time.Since(start) / runs
	if perCall > time.Millisecond {
		t.Fatalf("resolver too slow: %s per evaluation", perCall)
	}
}
