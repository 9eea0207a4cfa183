package glsl

import "strings"

// attribute maps a fixed-function vertex input to its explicit replacement.
// Locations come from this table, never from discovery order, so a legacy
// name lands on the same location in every shader.
type attribute struct {
	Legacy   string
	Name     string
	Type     string
	Location int
}

var attributes = []attribute{
	{"gl_Vertex", "inPosition", "vec4", 0},
	{"gl_Normal", "inNormal", "vec3", 1},
	{"gl_MultiTexCoord0", "inTexCoord0", "vec4", 2},
	{"gl_MultiTexCoord1", "inTexCoord1", "vec4", 3},
	{"gl_MultiTexCoord2", "inTexCoord2", "vec4", 4},
	{"gl_MultiTexCoord3", "inTexCoord3", "vec4", 5},
	{"gl_MultiTexCoord4", "inTexCoord4", "vec4", 6},
	{"gl_MultiTexCoord5", "inTexCoord5", "vec4", 7},
	{"gl_MultiTexCoord6", "inTexCoord6", "vec4", 8},
	{"gl_MultiTexCoord7", "inTexCoord7", "vec4", 9},
	{"gl_Color", "inColor", "vec4", 10},
	{"gl_SecondaryColor", "inSecondaryColor", "vec4", 11},
}

// customAttributeBase is the first location handed to pack-defined attributes.
const customAttributeBase = 12

func lookupAttribute(name string) (attribute, bool) {
	for _, a := range attributes {
		if a.Legacy == name {
			return a, true
		}
	}
	return attribute{}, false
}

// transform is a legacy matrix uniform folded into the generated block.
type transform struct {
	Legacy string
	Member string
	Type   string
	Array  string
}

// Members of the generated block appear in this order.
var transforms = []transform{
	{"gl_ModelViewMatrix", "modelViewMatrix", "mat4", ""},
	{"gl_ProjectionMatrix", "projectionMatrix", "mat4", ""},
	{"gl_ModelViewProjectionMatrix", "modelViewProjectionMatrix", "mat4", ""},
	{"gl_ModelViewMatrixInverse", "modelViewMatrixInverse", "mat4", ""},
	{"gl_ProjectionMatrixInverse", "projectionMatrixInverse", "mat4", ""},
	{"gl_ModelViewProjectionMatrixInverse", "modelViewProjectionMatrixInverse", "mat4", ""},
	{"gl_NormalMatrix", "normalMatrix", "mat3", ""},
	{"gl_TextureMatrix", "textureMatrix", "mat4", "[8]"},
}

func lookupTransform(name string) (transform, bool) {
	for _, t := range transforms {
		if t.Legacy == name {
			return t, true
		}
	}
	return transform{}, false
}

// TransformBlock is the name of the generated uniform block.
const TransformBlock = "Matrices"

// samplingCalls maps dimension-suffixed sampling functions to their unified form.
var samplingCalls = map[string]string{
	"texture1D":         "texture",
	"texture2D":         "texture",
	"texture3D":         "texture",
	"textureCube":       "texture",
	"texture2DRect":     "texture",
	"texture1DLod":      "textureLod",
	"texture2DLod":      "textureLod",
	"texture3DLod":      "textureLod",
	"textureCubeLod":    "textureLod",
	"texture1DProj":     "textureProj",
	"texture2DProj":     "textureProj",
	"texture3DProj":     "textureProj",
	"texture2DRectProj": "textureProj",
	"texture1DProjLod":  "textureProjLod",
	"texture2DProjLod":  "textureProjLod",
	"texture3DProjLod":  "textureProjLod",
	"texture2DGrad":     "textureGrad",
	"texture2DGradARB":  "textureGrad",
	"texture3DGrad":     "textureGrad",
	"textureCubeGrad":   "textureGrad",
	"texture2DLodEXT":   "textureLod",
	"shadow2D":          "texture",
	"shadow2DLod":       "textureLod",
	"shadow2DProj":      "textureProj",
}

// shadowCalls change result type when modernized.
var shadowCalls = map[string]bool{
	"shadow2D":     true,
	"shadow2DLod":  true,
	"shadow2DProj": true,
}

// deprecatedBuiltins have no core-profile equivalent the translator can produce.
var deprecatedBuiltins = map[string]bool{
	"gl_FrontColor":             true,
	"gl_BackColor":              true,
	"gl_FrontSecondaryColor":    true,
	"gl_BackSecondaryColor":     true,
	"gl_TexCoord":               true,
	"gl_FogCoord":               true,
	"gl_FogFragCoord":           true,
	"gl_Fog":                    true,
	"gl_ClipVertex":             true,
	"gl_LightSource":            true,
	"gl_LightModel":             true,
	"gl_FrontMaterial":          true,
	"gl_BackMaterial":           true,
	"gl_FrontLightModelProduct": true,
	"gl_BackLightModelProduct":  true,
	"gl_FrontLightProduct":      true,
	"gl_BackLightProduct":       true,
	"gl_Point":                  true,
	"gl_NormalScale":            true,
	"gl_FragColor":              true,
	"gl_FragData":               true,
}

func isDeprecatedBuiltin(name string) bool {
	if !strings.HasPrefix(name, "gl_") {
		return false
	}
	if deprecatedBuiltins[name] {
		return true
	}
	if _, ok := lookupTransform(name); ok {
		return true
	}
	if _, ok := lookupAttribute(name); ok {
		// in other stages gl_Color and friends are interpolated inputs, not attributes
		return true
	}
	return strings.HasPrefix(name, "gl_EyePlane") || strings.HasPrefix(name, "gl_ObjectPlane")
}

// locationSlots is the number of consecutive locations a varying of the given type consumes.
func locationSlots(typ string, arrayLen int) int {
	cols := 1
	if strings.HasPrefix(typ, "mat") || strings.HasPrefix(typ, "dmat") {
		t := strings.TrimPrefix(strings.TrimPrefix(typ, "d"), "mat")
		if t != "" && t[0] >= '2' && t[0] <= '4' {
			cols = int(t[0] - '0')
		}
	}
	return cols * arrayLen
}

// interpolation qualifiers that may precede a varying declaration.
var interpolation = map[string]bool{
	"flat":          true,
	"smooth":        true,
	"noperspective": true,
	"centroid":      true,
	"invariant":     true,
	"sample":        true,
}

var precisions = map[string]bool{
	"lowp":    true,
	"mediump": true,
	"highp":   true,
}
