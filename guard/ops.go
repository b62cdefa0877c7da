package guard

import (
	"github.com/olbboy/blenderops/cache"
)

// Bridge command types understood by the Blender addon.
const (
	CmdSceneInfo       = "get_scene_info"
	CmdListObjects     = "list_objects"
	CmdListMaterials   = "list_materials"
	CmdListCollections = "list_collections"
	CmdObjectInfo      = "get_object_info"
	CmdCreateObject    = "create_object"
	CmdModifyObject    = "modify_object"
	CmdDeleteObject    = "delete_object"
	CmdSetMaterial     = "set_material"
	CmdExecuteCode     = "execute_code"
)

// TTLClass selects which configured lifetime a cached query result gets.
type TTLClass int

const (
	// TTLDefault uses the cache-wide default lifetime.
	TTLDefault TTLClass = iota

	// TTLScene is for scene-scoped results, which go stale the moment
	// anything in the scene changes.
	TTLScene

	// TTLObject is for per-object results.
	TTLObject
)

// Query describes one cacheable read command.
type Query struct {
	// Op is the bridge command type.
	Op string

	// Params are passed to the addon verbatim.
	Params map[string]any

	// Key is the cache key. Empty disables caching for this call; the
	// command still goes through admission control.
	Key string

	// Class selects the configured TTL for the cached result.
	Class TTLClass
}

// Mutation describes one state-changing command and the cache scope it
// dirties.
type Mutation struct {
	// Op is the bridge command type.
	Op string

	// Params are passed to the addon verbatim.
	Params map[string]any

	// InvalidateScene drops all scene-scoped entries after the command
	// succeeds.
	InvalidateScene bool

	// InvalidateObject drops entries for the named object after the
	// command succeeds. Empty means no per-object invalidation.
	InvalidateObject string
}

// SceneInfo reads scene-level metadata (name, frame range, counts).
func SceneInfo() Query {
	return Query{Op: CmdSceneInfo, Key: cache.SceneInfoKey, Class: TTLScene}
}

// SceneObjects lists the objects in the scene.
func SceneObjects() Query {
	return Query{Op: CmdListObjects, Key: cache.SceneObjectsKey, Class: TTLScene}
}

// SceneMaterials lists the materials in the scene.
func SceneMaterials() Query {
	return Query{Op: CmdListMaterials, Key: cache.SceneMaterialsKey, Class: TTLScene}
}

// SceneCollections lists the collections in the scene.
func SceneCollections() Query {
	return Query{Op: CmdListCollections, Key: cache.SceneCollectionsKey, Class: TTLScene}
}

// ObjectInfo reads one object's transform, data, and material bindings.
func ObjectInfo(name string) Query {
	return Query{
		Op:     CmdObjectInfo,
		Params: map[string]any{"name": name},
		Key:    cache.ObjectInfoKey(name),
		Class:  TTLObject,
	}
}

// CreateObject adds an object to the scene. Scene listings change, so the
// scene namespace is invalidated.
func CreateObject(params map[string]any) Mutation {
	return Mutation{Op: CmdCreateObject, Params: params, InvalidateScene: true}
}

// ModifyObject changes an existing object. Both the scene namespace and
// the object's own entries go stale.
func ModifyObject(name string, changes map[string]any) Mutation {
	return Mutation{
		Op:               CmdModifyObject,
		Params:           withName(changes, "name", name),
		InvalidateScene:  true,
		InvalidateObject: name,
	}
}

// DeleteObject removes an object from the scene.
func DeleteObject(name string) Mutation {
	return Mutation{
		Op:               CmdDeleteObject,
		Params:           map[string]any{"name": name},
		InvalidateScene:  true,
		InvalidateObject: name,
	}
}

// SetMaterial assigns or updates a material on an object. The material
// listing and the object's info both change.
func SetMaterial(object string, material map[string]any) Mutation {
	return Mutation{
		Op:               CmdSetMaterial,
		Params:           withName(material, "object", object),
		InvalidateScene:  true,
		InvalidateObject: object,
	}
}

// withName copies params and adds the naming field without mutating the
// caller's map.
func withName(params map[string]any, field, value string) map[string]any {
	merged := make(map[string]any, len(params)+1)
	for k, v := range params {
		merged[k] = v
	}
	merged[field] = value
	return merged
}
