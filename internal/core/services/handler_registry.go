package services

import "strings"

// HandlerRegistry mapeia identificadores de handler para recursos limitados.
// Handlers sem mapeamento usam o próprio identificador como recurso.
type HandlerRegistry struct {
	resources map[string]string
}

func NewHandlerRegistry(mapping map[string]string) *HandlerRegistry {
	resources := make(map[string]string, len(mapping))
	for handler, resource := range mapping {
		resources[strings.TrimSpace(handler)] = strings.TrimSpace(resource)
	}
	return &HandlerRegistry{resources: resources}
}

func (r *HandlerRegistry) Resolve(handlerID string) string {
	handlerID = strings.TrimSpace(handlerID)
	if resource, ok := r.resources[handlerID]; ok && resource != "" {
		return resource
	}
	return handlerID
}
