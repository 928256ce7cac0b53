package domain

// Entity is an id-identified payload owned by a model.
//
// EntityVersion reports the monotonically increasing version of the payload, if the model has one.
// Versions are only compared between entities of the same model and id.
type Entity[ID comparable] interface {
	EntityID() ID
	EntityVersion() (int64, bool)
}
