package messaging

type KafkaEvent = string

const (
	// ProductCoreUpdatedEvent: значение ядровой платформы принято каталогом
	ProductCoreUpdatedEvent KafkaEvent = "product_core_updated"
	// ProductConflictFlaggedEvent: конфликт помечен для ручного разбора
	ProductConflictFlaggedEvent KafkaEvent = "product_conflict_flagged"
	// ProductConflictResolvedEvent: помеченный конфликт явно разрешен
	ProductConflictResolvedEvent KafkaEvent = "product_conflict_resolved"
)
