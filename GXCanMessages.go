package gxcan

// --------------------------------------------------------------------------
//
//	Gurux Ltd
//
// Filename:        $HeadURL$
//
// Version:         $Revision$,
//
//	$Date$
//	$Author$
//
// # Copyright (c) Gurux Ltd
//
// ---------------------------------------------------------------------------
//
//	DESCRIPTION
//
// This file is a part of Gurux Device Framework.
//
// Gurux Device Framework is Open Source software; you can redistribute it
// and/or modify it under the terms of the GNU General Public License
// as published by the Free Software Foundation; version 2 of the License.
// Gurux Device Framework is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU General Public License for more details.
//
// More information of Gurux products: https://www.gurux.org
//
// This code is licensed under the GNU General Public License v2.
// Full text may be retrieved at http://www.gnu.org/licenses/gpl-2.0.txt
// ---------------------------------------------------------------------------

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// defaultPrinter is used until Localize is called.
var defaultPrinter = message.NewPrinter(language.AmericanEnglish)

//nolint:errcheck
func init() {
	// --- English (en-US) ---
	message.SetString(language.AmericanEnglish, "msg.opening", "Module %d opening %s")
	message.SetString(language.AmericanEnglish, "msg.opened", "Module %d opened %s")
	message.SetString(language.AmericanEnglish, "msg.open_failed", "Module %d failed to open %s: %v")
	message.SetString(language.AmericanEnglish, "msg.closing", "Module %d closing %s")
	message.SetString(language.AmericanEnglish, "msg.closed", "Module %d closed %s")
	message.SetString(language.AmericanEnglish, "msg.stopped", "Module %d stopped")
	message.SetString(language.AmericanEnglish, "msg.restarted", "Module %d restarted")
	message.SetString(language.AmericanEnglish, "msg.rx_started", "Module %d receive thread started")
	message.SetString(language.AmericanEnglish, "msg.rx_stopped", "Module %d receive thread stopped: %v")
	message.SetString(language.AmericanEnglish, "msg.no_serial_port_selected", "No serial port selected. Please select a serial port.")
	message.SetString(language.AmericanEnglish, "msg.no_udp_port_selected", "No UDP port selected. Please select a UDP port.")

	// --- German (de) ---
	message.SetString(language.German, "msg.opening", "Modul %d öffnet %s")
	message.SetString(language.German, "msg.opened", "Modul %d hat %s geöffnet")
	message.SetString(language.German, "msg.open_failed", "Modul %d konnte %s nicht öffnen: %v")
	message.SetString(language.German, "msg.closing", "Modul %d schließt %s")
	message.SetString(language.German, "msg.closed", "Modul %d hat %s geschlossen")
	message.SetString(language.German, "msg.stopped", "Modul %d angehalten")
	message.SetString(language.German, "msg.restarted", "Modul %d fortgesetzt")
	message.SetString(language.German, "msg.rx_started", "Modul %d Empfangsthread gestartet")
	message.SetString(language.German, "msg.rx_stopped", "Modul %d Empfangsthread beendet: %v")
	message.SetString(language.German, "msg.no_serial_port_selected", "Kein serieller Port ausgewählt. Bitte wählen Sie einen seriellen Port aus.")
	message.SetString(language.German, "msg.no_udp_port_selected", "Kein UDP-Port ausgewählt. Bitte wählen Sie einen UDP-Port aus.")

	// --- Finnish (fi) ---
	message.SetString(language.Finnish, "msg.opening", "Moduuli %d avaa yhteyden %s")
	message.SetString(language.Finnish, "msg.opened", "Moduuli %d avasi yhteyden %s")
	message.SetString(language.Finnish, "msg.open_failed", "Moduuli %d ei voinut avata yhteyttä %s: %v")
	message.SetString(language.Finnish, "msg.closing", "Moduuli %d sulkee yhteyden %s")
	message.SetString(language.Finnish, "msg.closed", "Moduuli %d sulki yhteyden %s")
	message.SetString(language.Finnish, "msg.stopped", "Moduuli %d pysäytetty")
	message.SetString(language.Finnish, "msg.restarted", "Moduuli %d käynnistetty uudelleen")
	message.SetString(language.Finnish, "msg.rx_started", "Moduulin %d vastaanotto käynnistetty")
	message.SetString(language.Finnish, "msg.rx_stopped", "Moduulin %d vastaanotto pysähtyi: %v")
	message.SetString(language.Finnish, "msg.no_serial_port_selected", "Sarjaporttia ei ole valittu. Valitse sarjaportti.")
	message.SetString(language.Finnish, "msg.no_udp_port_selected", "UDP-porttia ei ole valittu. Valitse UDP-portti.")

	// --- Swedish (sv) ---
	message.SetString(language.Swedish, "msg.opening", "Modul %d öppnar %s")
	message.SetString(language.Swedish, "msg.opened", "Modul %d öppnade %s")
	message.SetString(language.Swedish, "msg.open_failed", "Modul %d kunde inte öppna %s: %v")
	message.SetString(language.Swedish, "msg.closing", "Modul %d stänger %s")
	message.SetString(language.Swedish, "msg.closed", "Modul %d stängde %s")
	message.SetString(language.Swedish, "msg.stopped", "Modul %d stoppad")
	message.SetString(language.Swedish, "msg.restarted", "Modul %d startad igen")
	message.SetString(language.Swedish, "msg.rx_started", "Modul %d mottagning startad")
	message.SetString(language.Swedish, "msg.rx_stopped", "Modul %d mottagning stoppad: %v")
	message.SetString(language.Swedish, "msg.no_serial_port_selected", "Ingen seriell port vald. Välj en seriell port.")
	message.SetString(language.Swedish, "msg.no_udp_port_selected", "Ingen UDP-port vald. Välj en UDP-port.")
}
