package cache

import "regexp"

// Cache keys follow a namespace convention the invalidation helpers rely
// on: scene-wide state lives under scene:, per-object state under
// object:<name>:.
const (
	SceneInfoKey        = "scene:info"
	SceneObjectsKey     = "scene:objects"
	SceneMaterialsKey   = "scene:materials"
	SceneCollectionsKey = "scene:collections"
)

// ObjectInfoKey returns the cache key for one object's info payload.
func ObjectInfoKey(name string) string {
	return "object:" + name + ":info"
}

// ScenePattern matches every scene-scoped key.
const ScenePattern = "^scene:"

// ObjectPattern returns a pattern matching one object's keys, or every
// object-scoped key when name is empty. The name is quoted so object
// names containing regexp metacharacters invalidate literally.
func ObjectPattern(name string) string {
	if name == "" {
		return "^object:"
	}
	return "^object:" + regexp.QuoteMeta(name) + ":"
}
