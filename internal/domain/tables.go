package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	// WhatsApp engine
	&WaDevice{},
	&WaMessage{},
	&WaInboxMessage{},
	&WaTemplate{},
	&WaImage{},
}
